package stream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := NewWriter(zw, "entities/stories.jsonl")
	require.NoError(t, err)

	entities := []testEntity{{ID: 1, Name: "Aleppo"}, {ID: 2, Name: "Lesbos"}, {ID: 3, Name: strings.Repeat("x", 200<<10)}}
	for _, e := range entities {
		require.NoError(t, w.Write(e))
	}
	assert.Equal(t, 3, w.Count())
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	rc, err := OpenFile(zr, "entities/stories.jsonl")
	require.NoError(t, err)

	var got []testEntity
	for e, err := range NewReader[testEntity](rc).All() {
		require.NoError(t, err)
		got = append(got, e)
	}
	assert.Equal(t, entities, got)

	_, err = OpenFile(zr, "entities/missing.jsonl")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestReader_ContinuesOnParseError(t *testing.T) {
	jsonl := `{"id":1,"name":"Good"}
{bad json}

{"id":2,"name":"Also Good"}
`
	var good []testEntity
	var bad int
	for e, err := range NewReader[testEntity](io.NopCloser(strings.NewReader(jsonl))).All() {
		if err != nil {
			bad++
			continue
		}
		good = append(good, e)
	}
	assert.Len(t, good, 2)
	assert.Equal(t, 1, bad)
}
