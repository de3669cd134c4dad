package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestPlaceholder(t *testing.T) {
	data, err := Placeholder("Lion", "bg-orange-400")
	if err != nil {
		t.Fatalf("Placeholder failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Placeholder is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != CardSize || b.Dy() != CardSize {
		t.Errorf("Expected %dx%d, got %v", CardSize, CardSize, b)
	}

	// Corner stays white, tile interior takes the category colour
	r, g, bl, _ := img.At(2, 2).RGBA()
	if r>>8 != 0xff || g>>8 != 0xff || bl>>8 != 0xff {
		t.Errorf("Expected white corner, got %v", img.At(2, 2))
	}
	want := ColorFor("bg-orange-400")
	r, g, bl, _ = img.At(40, 40).RGBA()
	if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(bl>>8) != want.B {
		t.Errorf("Expected tile colour %v, got %v", want, img.At(40, 40))
	}
}

func TestPlaceholderLongWord(t *testing.T) {
	if _, err := Placeholder("Supercalifragilisticexpialidocious", "bg-unknown-100"); err != nil {
		t.Fatalf("Placeholder failed: %v", err)
	}
}

func TestColorFor(t *testing.T) {
	if ColorFor("bg-sky-400") != palette["sky"] {
		t.Error("Expected palette colour for sky")
	}
	a, b := ColorFor("bg-mystery-500"), ColorFor("bg-mystery-500")
	if a != b {
		t.Error("Fallback colour must be stable")
	}
}

func TestNormalizeSketch(t *testing.T) {
	// 200x100 transparent canvas with one black stroke
	src := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for x := 60; x < 140; x++ {
		src.Set(x, 50, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("Failed to encode source: %v", err)
	}

	out, err := NormalizeSketch(buf.Bytes(), 64)
	if err != nil {
		t.Fatalf("NormalizeSketch failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("Expected 64x64, got %v", b)
	}
	r, g, bl, a := img.At(0, 0).RGBA()
	if r>>8 != 0xff || g>>8 != 0xff || bl>>8 != 0xff || a>>8 != 0xff {
		t.Errorf("Transparent pixels should become white, got %v", img.At(0, 0))
	}
}

func TestNormalizeSketchInvalid(t *testing.T) {
	if _, err := NormalizeSketch([]byte("not an image"), 64); err == nil {
		t.Error("Expected decode error")
	}
}
