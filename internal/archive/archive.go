// Package archive detects and extracts the archive formats source
// distributions ship in: gzip-compressed tar, bare tar, and zip.
// Detection sniffs file content, never the extension.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnrecognizedFormat is reported for files that are neither tar-family
// nor zip-family. Callers treat it as a per-package skip.
var ErrUnrecognizedFormat = errors.New("unrecognized archive format")

// Format is a detected archive family.
type Format int

const (
	FormatUnknown Format = iota
	FormatTarGz
	FormatTar
	FormatZip
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
)

// Detect sniffs the archive format of the file at path.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	// 265 bytes covers both leading magics and the ustar marker at offset 257.
	header := make([]byte, 265)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, err
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return FormatTarGz, nil
	case bytes.HasPrefix(header, zipMagic):
		return FormatZip, nil
	case len(header) >= 262 && bytes.Equal(header[257:262], []byte("ustar")):
		return FormatTar, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, path)
}

// Extract unpacks every entry of the archive at path into destDir.
// A mid-stream failure propagates with whatever was already written left in
// place; cleanup is the retention policy's concern, not the codec's.
func Extract(path, destDir string) error {
	format, err := Detect(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		return extractTar(gz, destDir)
	case FormatTar:
		return extractTar(f, destDir)
	case FormatZip:
		return extractZip(path, destDir)
	}
	return fmt.Errorf("%w: %s", ErrUnrecognizedFormat, path)
}

func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			// Symlinks and device nodes in sdists are noise; skip them.
		}
	}
}

func extractZip(path, destDir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening zip %s: %w", path, err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("opening zip entry %s: %w", entry.Name, err)
		}
		err = writeFile(target, rc, entry.FileInfo().Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// safeJoin resolves an archive entry name under destDir, rejecting names
// that would escape it ("zip slip").
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}
