// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docx

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const body = `<w:document><w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p></w:body></w:document>`

func writeArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"[Content_Types].xml", MarkupPart, "word/styles.xml"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "in.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestOpenAndRoundTrip(t *testing.T) {
	in := writeArchive(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		MarkupPart:            body,
		"word/styles.xml":     "<w:styles/>",
	})

	p, err := Open(in)
	require.NoError(t, err)
	assert.Equal(t, body, p.Markup())

	out := filepath.Join(t.TempDir(), "nested", "out.docx")
	updated := p.WithMarkup("<w:document/>")
	require.NoError(t, updated.Save(out))

	assert.Equal(t, body, p.Markup(), "WithMarkup must not modify the receiver")

	got, err := Open(out)
	require.NoError(t, err)
	assert.Equal(t, "<w:document/>", got.Markup())
	assert.Equal(t, []string{"[Content_Types].xml", MarkupPart, "word/styles.xml"}, got.Names())

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestOpen_MissingMarkup(t *testing.T) {
	in := writeArchive(t, map[string]string{"[Content_Types].xml": "<Types/>"})
	_, err := Open(in)
	assert.ErrorIs(t, err, ErrMissingMarkup)
}

func TestOpen_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.docx"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	p := New(body)
	data, err := p.Bytes()
	require.NoError(t, err)

	got, err := Read(data)
	require.NoError(t, err)
	assert.Equal(t, body, got.Markup())
}
