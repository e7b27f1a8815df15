// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docx reads and writes the main markup part of a .docx package.
// Every other part is carried through unchanged.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MarkupPart is the archive entry holding the document body.
const MarkupPart = "word/document.xml"

// ErrMissingMarkup is returned when an archive has no word/document.xml.
var ErrMissingMarkup = errors.New("missing " + MarkupPart)

type entry struct {
	header zip.FileHeader
	data   []byte
}

// Package is a .docx archive held in memory.
type Package struct {
	entries []entry
	markup  int
}

// Open reads the archive at path. A malformed archive or one without the
// markup part is an error.
func Open(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	p, err := Read(data)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return p, nil
}

// Read parses an archive from memory.
func Read(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}

	p := &Package{markup: -1}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading entry %s: %w", f.Name, err)
		}
		if f.Name == MarkupPart {
			p.markup = len(p.entries)
		}
		p.entries = append(p.entries, entry{header: f.FileHeader, data: body})
	}
	if p.markup < 0 {
		return nil, ErrMissingMarkup
	}
	return p, nil
}

// Markup returns the document body markup.
func (p *Package) Markup() string {
	return string(p.entries[p.markup].data)
}

// WithMarkup returns a copy of the package with the body replaced. The
// receiver is not modified.
func (p *Package) WithMarkup(markup string) *Package {
	out := &Package{entries: make([]entry, len(p.entries)), markup: p.markup}
	copy(out.entries, p.entries)
	out.entries[p.markup].data = []byte(markup)
	return out
}

// Names returns the archive entry names in order.
func (p *Package) Names() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.header.Name
	}
	return names
}

// Bytes encodes the package as a zip archive. Entry order, names,
// compression methods and timestamps are preserved.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range p.entries {
		fh := &zip.FileHeader{
			Name:     e.header.Name,
			Method:   e.header.Method,
			Modified: e.header.Modified,
			Comment:  e.header.Comment,
		}
		w, err := zw.CreateHeader(fh)
		if err != nil {
			return nil, fmt.Errorf("writing entry %s: %w", e.header.Name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("writing entry %s: %w", e.header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the package to path through a temporary file in the same
// directory, renamed into place once complete. A failed write leaves no
// partial output.
func (p *Package) Save(path string) error {
	data, err := p.Bytes()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// New builds a minimal package around markup. It is used by tests and by
// callers that hold bare markup.
func New(markup string) *Package {
	return &Package{
		entries: []entry{
			{header: zip.FileHeader{Name: "[Content_Types].xml", Method: zip.Deflate}, data: []byte(contentTypes)},
			{header: zip.FileHeader{Name: MarkupPart, Method: zip.Deflate}, data: []byte(markup)},
		},
		markup: 1,
	}
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`
