package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id, err := Generate("test")
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"session", "sess"},
		{"backup", "backup"},
		{"custom", "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Generate(tt.prefix)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(id, tt.prefix+"-"))
			assert.Len(t, id, len(tt.prefix)+1+21)
		})
	}
}

func TestShareToken(t *testing.T) {
	for i := 0; i < 200; i++ {
		tok, err := ShareToken()
		require.NoError(t, err)
		require.Len(t, tok, ShareTokenLength)
		for _, r := range tok {
			assert.True(t, strings.ContainsRune(shareAlphabet, r), "unexpected rune %q", r)
		}
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		id := MustGenerate("sess")
		assert.True(t, strings.HasPrefix(id, "sess-"))
	})
}
