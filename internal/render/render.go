package render

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"
)

// CardSize is the edge of rendered card images in pixels.
const CardSize = 512

// palette holds the 400 shade of the colour families used by categories.
var palette = map[string]color.NRGBA{
	"orange":  {0xfb, 0x92, 0x3c, 0xff},
	"yellow":  {0xfa, 0xcc, 0x15, 0xff},
	"indigo":  {0x81, 0x8c, 0xf8, 0xff},
	"pink":    {0xf4, 0x72, 0xb6, 0xff},
	"red":     {0xf8, 0x71, 0x71, 0xff},
	"blue":    {0x60, 0xa5, 0xfa, 0xff},
	"emerald": {0x34, 0xd3, 0x99, 0xff},
	"lime":    {0xa3, 0xe6, 0x35, 0xff},
	"violet":  {0xa7, 0x8b, 0xfa, 0xff},
	"purple":  {0xc0, 0x84, 0xfc, 0xff},
	"sky":     {0x38, 0xbd, 0xf8, 0xff},
	"green":   {0x4a, 0xde, 0x80, 0xff},
	"amber":   {0xfb, 0xbf, 0x24, 0xff},
	"cyan":    {0x22, 0xd3, 0xee, 0xff},
	"teal":    {0x2d, 0xd4, 0xbf, 0xff},
	"rose":    {0xfb, 0x71, 0x85, 0xff},
	"slate":   {0x94, 0xa3, 0xb8, 0xff},
}

// ColorFor maps a category colour class such as "bg-orange-400" to RGB.
// Unknown classes get a stable colour derived from the class name.
func ColorFor(class string) color.NRGBA {
	parts := strings.Split(strings.TrimPrefix(class, "bg-"), "-")
	if c, ok := palette[parts[0]]; ok {
		return c
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(class))
	sum := h.Sum32()
	return color.NRGBA{R: uint8(sum>>16) | 0x60, G: uint8(sum>>8) | 0x60, B: uint8(sum) | 0x60, A: 0xff}
}

// Placeholder draws a card picture used while the real image is missing:
// the word on a rounded tile in the category colour.
func Placeholder(word, colorClass string) ([]byte, error) {
	const size = CardSize
	dc := gg.NewContext(size, size)

	dc.SetColor(color.White)
	dc.Clear()

	dc.DrawRoundedRectangle(16, 16, size-32, size-32, 48)
	dc.SetColor(ColorFor(colorClass))
	dc.Fill()

	dc.DrawCircle(size/2, size/2-40, 120)
	dc.SetColor(color.NRGBA{0xff, 0xff, 0xff, 0x66})
	dc.Fill()

	label := strings.ToUpper(strings.TrimSpace(word))
	if label == "" {
		label = "?"
	}
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(color.White)

	// basicfont is tiny; scale it to fit the tile
	width, _ := dc.MeasureString(label)
	scale := 5.0
	if width*scale > size-80 {
		scale = (size - 80) / width
	}
	dc.Push()
	dc.ScaleAbout(scale, scale, size/2, size-110)
	dc.DrawStringAnchored(label, size/2, size-110, 0.5, 0.5)
	dc.Pop()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeSketch flattens a drawing onto white, centre-crops it to a
// square and scales it to size x size before it is sent for redrawing.
func NormalizeSketch(raw []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side == 0 {
		return nil, fmt.Errorf("empty image")
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2

	// Transparent canvas pixels become white paper
	cropRect := image.Rect(0, 0, side, side)
	cropped := image.NewRGBA(cropRect)
	draw.Draw(cropped, cropRect, image.White, image.Point{}, draw.Src)
	draw.Draw(cropped, cropRect, img, image.Point{X: x0, Y: y0}, draw.Over)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Src, nil)

	dc := gg.NewContextForRGBA(dst)
	var out bytes.Buffer
	if err := dc.EncodePNG(&out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
