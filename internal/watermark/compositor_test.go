package watermark

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"
)

func testPage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.RGBA{R: 250, G: 250, B: 245, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test page: %v", err)
	}
	return buf.Bytes()
}

func testOptions() Options {
	return Options{
		IdentityLabel: "viewer@example.com",
		SessionID:     "0d9f3a1c-4b2e-4f6a-8c1d-2e3f4a5b6c7d",
		Timestamp:     time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Opacity:       0.14,
		Format:        FormatJPEG,
	}
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return img
}

func TestComposeMarksThePage(t *testing.T) {
	c, err := NewCompositor("DocShield")
	if err != nil {
		t.Fatalf("new compositor: %v", err)
	}

	src := testPage(t)
	out, contentType, err := c.Compose(src, testOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if contentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", contentType)
	}

	marked := decodeJPEG(t, out)
	srcImg, err := png.Decode(bytes.NewReader(src))
	if err != nil {
		t.Fatalf("decode source: %v", err)
	}

	// On a near-uniform page, compositing must change a visible number of
	// pixels. Count the ones that moved beyond JPEG noise.
	changed := 0
	bounds := marked.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 2 {
			mr, mg, mb, _ := marked.At(x, y).RGBA()
			sr, sg, sb, _ := srcImg.At(x, y).RGBA()
			if diff(mr, sr) > 1500 || diff(mg, sg) > 1500 || diff(mb, sb) > 1500 {
				changed++
			}
		}
	}
	if changed < 100 {
		t.Fatalf("expected visible watermark marks, only %d sampled pixels changed", changed)
	}
}

func diff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestComposeDifferentIdentitiesDiffer(t *testing.T) {
	c, err := NewCompositor("DocShield")
	if err != nil {
		t.Fatalf("new compositor: %v", err)
	}
	src := testPage(t)

	optsA := testOptions()
	optsB := testOptions()
	optsB.IdentityLabel = "someone-else@example.com"

	outA, _, err := c.Compose(src, optsA)
	if err != nil {
		t.Fatalf("compose a: %v", err)
	}
	outB, _, err := c.Compose(src, optsB)
	if err != nil {
		t.Fatalf("compose b: %v", err)
	}
	if bytes.Equal(outA, outB) {
		t.Fatal("different identities must produce different images")
	}
}

func TestComposeFormats(t *testing.T) {
	c, err := NewCompositor("DocShield")
	if err != nil {
		t.Fatalf("new compositor: %v", err)
	}
	src := testPage(t)

	cases := []struct {
		format      string
		contentType string
	}{
		{FormatJPEG, "image/jpeg"},
		{FormatPNG, "image/png"},
		// No webp encoder; the fallback is jpeg and the content type says so.
		{FormatWebP, "image/jpeg"},
		{"", "image/jpeg"},
		{"bmp", "image/jpeg"},
	}
	for _, tc := range cases {
		opts := testOptions()
		opts.Format = tc.format
		out, contentType, err := c.Compose(src, opts)
		if err != nil {
			t.Fatalf("compose %q: %v", tc.format, err)
		}
		if contentType != tc.contentType {
			t.Fatalf("format %q: expected %q, got %q", tc.format, tc.contentType, contentType)
		}
		if len(out) == 0 {
			t.Fatalf("format %q: empty output", tc.format)
		}
	}
}

func TestComposeRejectsEmptyIdentity(t *testing.T) {
	c, err := NewCompositor("DocShield")
	if err != nil {
		t.Fatalf("new compositor: %v", err)
	}
	opts := testOptions()
	opts.IdentityLabel = ""
	if _, _, err := c.Compose(testPage(t), opts); err == nil {
		t.Fatal("an empty identity label must not produce an image")
	}
}

func TestComposeRejectsCorruptInput(t *testing.T) {
	c, err := NewCompositor("DocShield")
	if err != nil {
		t.Fatalf("new compositor: %v", err)
	}
	if _, _, err := c.Compose([]byte("definitely not an image"), testOptions()); err == nil {
		t.Fatal("undecodable input must fail")
	}
}

func TestComposeOpacityOutOfRangeUsesDefault(t *testing.T) {
	c, err := NewCompositor("DocShield")
	if err != nil {
		t.Fatalf("new compositor: %v", err)
	}
	for _, opacity := range []float64{0, -1, 2} {
		opts := testOptions()
		opts.Opacity = opacity
		if _, _, err := c.Compose(testPage(t), opts); err != nil {
			t.Fatalf("opacity %v: %v", opacity, err)
		}
	}
}
