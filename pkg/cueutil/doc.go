// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE helpers shared by the configuration loader and
// the strict descriptor reader.
//
// Decode validates a CUE document against an embedded schema definition and
// decodes it into a Go struct:
//
//	//go:embed config_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.Decode[Config](schemaBytes, data, "#Config",
//	    cueutil.WithFilename("config.cue"),
//	    cueutil.WithConcrete(false),
//	)
//
// FormatError and FirstPosition turn CUE errors into messages and source
// positions that name the offending field.
package cueutil
