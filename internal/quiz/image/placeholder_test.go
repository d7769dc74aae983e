package image

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderProducesDecodablePNG(t *testing.T) {
	uri, err := Placeholder("photosynthesis", 512, 288)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 288, img.Bounds().Dy())
}

func TestPlaceholderDeterministicColor(t *testing.T) {
	a, err := Placeholder("volcanoes", 64, 64)
	require.NoError(t, err)
	b, err := Placeholder("volcanoes", 64, 64)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPlaceholderTruncatesLongPrompts(t *testing.T) {
	_, err := Placeholder(strings.Repeat("a very long topic ", 50), 256, 144)
	assert.NoError(t, err)
}
