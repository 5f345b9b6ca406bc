package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRestoreMode_Valid(t *testing.T) {
	tests := []struct {
		mode  RestoreMode
		valid bool
	}{
		{RestoreModeFull, true},
		{RestoreModeMerge, true},
		{"events_only", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.mode.Valid())
		})
	}
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("backup-20261018-101010-V1StGXR8_Z5jdHi6B-myT"))
	assert.False(t, validID(""))
	assert.False(t, validID("../etc/passwd"))
	assert.False(t, validID("a/b"))
}
