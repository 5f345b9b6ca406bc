// Package stream provides JSONL streaming to/from zip archives.
package stream

import (
	"io"

	"encoding/json/v2"

	"github.com/klauspost/compress/zip"
)

// Writer streams entities as JSONL into one entry of a zip archive.
type Writer struct {
	w     io.Writer
	count int
}

// NewWriter creates a deflated JSONL entry at path.
func NewWriter(zw *zip.Writer, path string) (*Writer, error) {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: path, Method: zip.Deflate})
	if err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// Write encodes a single entity as a JSON line.
func (w *Writer) Write(entity any) error {
	if err := json.MarshalWrite(w.w, entity); err != nil {
		return err
	}
	if _, err := w.w.Write([]byte{'\n'}); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns entities written so far.
func (w *Writer) Count() int {
	return w.count
}
