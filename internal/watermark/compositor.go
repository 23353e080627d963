package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Format names accepted by Compose. WebP is accepted for compatibility with
// viewer clients but is encoded as JPEG: the renderer has no WebP encoder.
// The returned content type reflects what was actually encoded.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

type Options struct {
	IdentityLabel string
	SessionID     string
	Timestamp     time.Time
	Opacity       float64
	Format        string
}

type Compositor struct {
	productLabel string
	fnt          *truetype.Font
	jpegQuality  int
}

func NewCompositor(productLabel string) (*Compositor, error) {
	fnt, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse watermark font: %w", err)
	}
	if productLabel == "" {
		productLabel = "DocShield"
	}
	return &Compositor{productLabel: productLabel, fnt: fnt, jpegQuality: 85}, nil
}

// Compose burns the identity label, product label and a truncated
// timestamp/session fragment into the image at several rotated positions
// plus the four corners, so no single crop removes every mark. Any failure
// is returned to the caller; there is no unwatermarked fallback.
func (c *Compositor) Compose(src []byte, opts Options) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", fmt.Errorf("decode page image: %w", err)
	}

	opacity := opts.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 0.14
	}
	if opts.IdentityLabel == "" {
		return nil, "", fmt.Errorf("watermark identity label is empty")
	}

	dc := gg.NewContextForImage(img)
	w := float64(dc.Width())
	h := float64(dc.Height())

	session := opts.SessionID
	if len(session) > 8 {
		session = session[:8]
	}
	stamp := fmt.Sprintf("%s %s %s", c.productLabel, opts.Timestamp.UTC().Format("2006-01-02 15:04"), session)

	mainSize := clamp(w*0.032, 14, 64)
	cornerSize := clamp(w*0.016, 9, 28)

	// Scattered diagonal marks across the page body.
	dc.SetFontFace(c.face(mainSize))
	angles := []float64{-28, 18, -12}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			x := w * (0.18 + 0.32*float64(col))
			y := h * (0.16 + 0.34*float64(row))
			angle := gg.Radians(angles[(row+col)%len(angles)])

			dc.Push()
			dc.RotateAbout(angle, x, y)
			dc.SetRGBA(0.25, 0.25, 0.25, opacity)
			dc.DrawStringAnchored(opts.IdentityLabel, x, y, 0.5, 0.5)
			dc.SetRGBA(0.25, 0.25, 0.25, opacity*0.8)
			dc.DrawStringAnchored(stamp, x, y+mainSize*1.3, 0.5, 0.5)
			dc.Pop()
		}
	}

	// Low-opacity corner stamps.
	dc.SetFontFace(c.face(cornerSize))
	dc.SetRGBA(0.25, 0.25, 0.25, opacity*0.7)
	margin := cornerSize * 1.2
	dc.DrawStringAnchored(opts.IdentityLabel, margin, margin, 0, 0.5)
	dc.DrawStringAnchored(stamp, w-margin, margin, 1, 0.5)
	dc.DrawStringAnchored(stamp, margin, h-margin, 0, 0.5)
	dc.DrawStringAnchored(opts.IdentityLabel, w-margin, h-margin, 1, 0.5)

	return c.encode(dc.Image(), opts.Format)
}

func (c *Compositor) encode(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		// jpeg, webp and anything unrecognized all encode as JPEG.
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.jpegQuality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

func (c *Compositor) face(size float64) font.Face {
	return truetype.NewFace(c.fnt, &truetype.Options{Size: size})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
