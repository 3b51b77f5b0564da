package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Format is the packaging format of a deployment artifact.
type Format string

const (
	FormatZip      Format = "zip"
	FormatSquashfs Format = "squashfs"
)

// Ext returns the file extension used in blob names.
func (f Format) Ext() string { return "." + string(f) }

// ContentType returns the MIME type sent with uploads.
func (f Format) ContentType() string {
	if f == FormatZip {
		return "application/zip"
	}
	return "application/octet-stream"
}

// Package is a finished artifact held in memory. The embedded reader is the
// single stream every transfer attempt reads from; callers seek it back to
// zero before each attempt.
type Package struct {
	*bytes.Reader
	Format Format
	Files  int
}

// NewPackage wraps raw artifact bytes.
func NewPackage(data []byte, format Format, files int) *Package {
	return &Package{Reader: bytes.NewReader(data), Format: format, Files: files}
}

// Bytes returns the full artifact without moving the read position.
func (p *Package) Bytes() ([]byte, error) {
	buf := make([]byte, p.Size())
	if _, err := p.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// Build writes every accepted entry into a zip archive.
func (b *Builder) Build(ctx context.Context) (*Package, error) {
	entries, err := b.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return b.Zip(ctx, entries)
}

// Zip writes entries into a deflate-compressed zip archive.
func (b *Builder) Zip(ctx context.Context, entries []Entry) (*Package, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := b.fsys.ReadFile(e.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Source, err)
		}

		header := &zip.FileHeader{Name: e.Path, Method: zip.Deflate}
		header.SetMode(e.Mode)
		if info, err := b.fsys.Stat(e.Source); err == nil && !info.ModTime().IsZero() {
			header.Modified = info.ModTime()
		}

		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", e.Path, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", e.Path, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	b.log.WithField("files", len(entries)).WithField("bytes", buf.Len()).Debug("Built zip package")
	return NewPackage(buf.Bytes(), FormatZip, len(entries)), nil
}
