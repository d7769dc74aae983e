package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"image/color"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var placeholderPalette = []color.NRGBA{
	{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF},
	{R: 0x8B, G: 0x5C, B: 0xF6, A: 0xFF},
	{R: 0x10, G: 0xB9, B: 0x81, A: 0xFF},
	{R: 0xF5, G: 0x9E, B: 0x0B, A: 0xFF},
	{R: 0xEF, G: 0x44, B: 0x44, A: 0xFF},
	{R: 0x06, G: 0xB6, B: 0xD4, A: 0xFF},
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

func placeholderFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(fontTTF, &truetype.Options{Size: size}), nil
}

// Placeholder renders a flat-color PNG with the prompt text centered on
// it and returns it as a data URI, so a quiz stays usable when the image
// backend is down. The background color is derived from the prompt so
// the same question keeps the same tint across renders.
func Placeholder(prompt string, width, height int) (string, error) {
	face, err := placeholderFace(float64(height) / 12)
	if err != nil {
		return "", fmt.Errorf("load placeholder font: %w", err)
	}

	h := fnv.New32a()
	h.Write([]byte(prompt))
	bg := placeholderPalette[int(h.Sum32())%len(placeholderPalette)]

	dc := gg.NewContext(width, height)
	dc.SetColor(bg)
	dc.Clear()
	dc.SetFontFace(face)
	dc.SetRGB(1, 1, 1)

	label := prompt
	if len(label) > 60 {
		label = clipRunes(label, 57) + "..."
	}
	dc.DrawStringWrapped(label, float64(width)/2, float64(height)/2,
		0.5, 0.5, float64(width)*0.8, 1.4, gg.AlignCenter)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return "", fmt.Errorf("encode placeholder PNG: %w", err)
	}

	var uri strings.Builder
	uri.WriteString("data:image/png;base64,")
	uri.WriteString(base64.StdEncoding.EncodeToString(buf.Bytes()))
	return uri.String(), nil
}
