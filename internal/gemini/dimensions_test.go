package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensions(t *testing.T) {
	tests := []struct {
		name        string
		aspectRatio string
		resolution  string
		width       int
		height      int
	}{
		{"landscape 2K", "16:9", "2K", 2048, 1152},
		{"portrait 1K", "9:16", "1K", 576, 1024},
		{"square 4K", "1:1", "4K", 4096, 4096},
		{"default resolution", "1:1", "", 1024, 1024},
		{"classic landscape", "4:3", "1K", 1024, 768},
		{"wide 4K", "21:9", "4K", 4096, 1755},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := Dimensions(tt.aspectRatio, tt.resolution)
			require.NoError(t, err)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestDimensions_InvalidInput(t *testing.T) {
	_, _, err := Dimensions("16x9", "1K")
	assert.Error(t, err)

	_, _, err = Dimensions("0:9", "1K")
	assert.Error(t, err)

	_, _, err = Dimensions("16:9", "8K")
	assert.Error(t, err)
}

func TestParseAspectRatio(t *testing.T) {
	w, h, err := ParseAspectRatio("16:9")
	require.NoError(t, err)
	assert.Equal(t, 16, w)
	assert.Equal(t, 9, h)

	_, _, err = ParseAspectRatio("16:9:2")
	assert.Error(t, err)

	_, _, err = ParseAspectRatio("a:b")
	assert.Error(t, err)
}
