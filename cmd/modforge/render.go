// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/resolver"
)

// renderDiagnostics writes one line per diagnostic. Informational entries
// are shown only when verbose.
func renderDiagnostics(w io.Writer, chain *diag.Chain, verbose bool) {
	if chain == nil {
		return
	}
	for _, d := range chain.Diagnostics() {
		if d.Severity == diag.SeverityInfo && !verbose {
			continue
		}
		fmt.Fprintln(w, renderDiagnostic(d))
	}
}

func renderDiagnostic(d diag.Diagnostic) string {
	var sb strings.Builder
	switch d.Severity {
	case diag.SeverityError:
		sb.WriteString(ErrorStyle.Render("✗ error"))
	case diag.SeverityWarning:
		sb.WriteString(WarningStyle.Render("! warning"))
	default:
		sb.WriteString(VerboseStyle.Render("• info"))
	}
	sb.WriteString(" ")
	if loc := d.Pos.String(); loc != "" {
		sb.WriteString(CmdStyle.Render(loc))
		sb.WriteString(": ")
	}
	sb.WriteString(d.Message)
	sb.WriteString(VerboseStyle.Render(" [" + string(d.Code) + "]"))
	return sb.String()
}

// renderSummary writes the diagnostic counts. Nothing is written for an empty chain.
func renderSummary(w io.Writer, chain *diag.Chain) {
	if chain == nil || chain.Len() == 0 {
		return
	}
	errs, warns := chain.Count(diag.SeverityError), chain.Count(diag.SeverityWarning)
	line := fmt.Sprintf("%d error(s), %d warning(s)", errs, warns)
	switch {
	case errs > 0:
		line = ErrorStyle.Render(line)
	case warns > 0:
		line = WarningStyle.Render(line)
	default:
		line = SubtitleStyle.Render(line)
	}
	fmt.Fprintln(w, line)
}

// renderReleases lists the selected releases of res. With installed set, each
// line shows where the release landed.
func renderReleases(w io.Writer, res *resolver.Result, installed bool) {
	if res == nil {
		return
	}
	if len(res.Releases) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No dependencies to install."))
		return
	}

	title := "Resolved releases"
	if installed {
		title = "Installed releases"
	}
	fmt.Fprintln(w, TitleStyle.Render(title))
	for _, rel := range res.Releases {
		line := fmt.Sprintf("  %s %s", CmdStyle.Render(rel.Name.Slash()), rel.Version.String())
		if rel.RangeText != "" {
			line += SubtitleStyle.Render(" (" + rel.RangeText + ")")
		}
		if !rel.RequiredBy.IsZero() {
			line += VerboseStyle.Render(" required by " + rel.RequiredBy.Slash())
		}
		if installed {
			switch {
			case rel.Skipped:
				line += SubtitleStyle.Render(" up to date")
			case rel.Dir != "":
				line += SuccessStyle.Render(" → " + rel.Dir)
			}
		}
		fmt.Fprintln(w, line)
	}
}
