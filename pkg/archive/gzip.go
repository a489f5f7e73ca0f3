// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Decompress returns a reader over the tar stream in r, transparently
// removing a gzip wrapper when one is present.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && len(head) == 0 {
		// Empty input: let the tar reader report truncation.
		return io.NopCloser(br), nil
	}
	if !bytes.Equal(head, gzipMagic) {
		return io.NopCloser(br), nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveTruncated, err)
	}
	return zr, nil
}

// PackGzip is Pack with the tar stream wrapped in gzip, the format of
// published release files.
func PackGzip(sourceDir string, w io.Writer, opts PackOptions) (err error) {
	zw := gzip.NewWriter(w)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return Pack(sourceDir, zw, opts)
}

// UnpackFile unpacks a .tar or .tar.gz file.
func UnpackFile(archivePath, targetDir string, opts UnpackOptions) (err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	rc, err := Decompress(f)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return Unpack(rc, targetDir, opts)
}

// PackFile writes sourceDir to archivePath, gzip-compressed. A partially
// written file is removed on failure.
func PackFile(sourceDir, archivePath string, opts PackOptions) (err error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(archivePath) // Best-effort cleanup of partial archive
		}
	}()
	return PackGzip(sourceDir, f, opts)
}
