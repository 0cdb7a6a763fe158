package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralize(t *testing.T) {
	assert.Equal(t, "file", Pluralize(1, "file", "files"))
	assert.Equal(t, "files", Pluralize(0, "file", "files"))
	assert.Equal(t, "files", Pluralize(12, "file", "files"))
}

func TestBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1000, "1.0 kB"},
		{4200000, "4.2 MB"},
		{-5, "0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Bytes(tt.in))
		})
	}
}
