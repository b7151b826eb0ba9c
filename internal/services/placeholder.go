package services

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	placeholderWidth  = 1280
	placeholderHeight = 720
)

// Wall-friendly background palette for generated placeholders.
var placeholderColors = []color.NRGBA{
	{R: 0x2E, G: 0x3A, B: 0x59, A: 0xFF},
	{R: 0x5B, G: 0x3A, B: 0x6B, A: 0xFF},
	{R: 0x1F, G: 0x5F, B: 0x5B, A: 0xFF},
	{R: 0x6B, G: 0x45, B: 0x2A, A: 0xFF},
	{R: 0x3A, G: 0x4A, B: 0x2E, A: 0xFF},
	{R: 0x59, G: 0x2E, B: 0x38, A: 0xFF},
}

// PlaceholderService renders a stand-in thumbnail when frame
// extraction fails, and downscales raw image uploads. Thumbnails are
// cosmetic: nothing here may fail the upload flow, so construction
// always succeeds and falls back to a bundled font.
type PlaceholderService interface {
	RenderPlaceholder(title string) ([]byte, error)
	DownscaleImage(raw []byte, maxWidth int) ([]byte, error)
}

type placeholderService struct {
	fontFace font.Face
}

func NewPlaceholderService() PlaceholderService {
	face := loadFaceFromEnv()
	if face == nil {
		if f, err := truetype.Parse(goregular.TTF); err == nil {
			face = truetype.NewFace(f, &truetype.Options{Size: 220})
		}
	}
	return &placeholderService{fontFace: face}
}

func loadFaceFromEnv() font.Face {
	fontPath := strings.TrimSpace(os.Getenv("PLACEHOLDER_FONT"))
	if fontPath == "" {
		return nil
	}
	raw, err := os.ReadFile(fontPath)
	if err != nil {
		return nil
	}
	f, err := truetype.Parse(raw)
	if err != nil {
		return nil
	}
	return truetype.NewFace(f, &truetype.Options{Size: 220})
}

func (s *placeholderService) RenderPlaceholder(title string) ([]byte, error) {
	dc := gg.NewContext(placeholderWidth, placeholderHeight)

	bg := placeholderColors[colorIndexFor(title)]
	dc.SetColor(bg)
	dc.Clear()

	if s.fontFace != nil {
		initial := "?"
		if t := strings.TrimSpace(title); t != "" {
			initial = strings.ToUpper(string([]rune(t)[0]))
		}
		dc.SetFontFace(s.fontFace)
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(initial, placeholderWidth/2, placeholderHeight/2, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 70}); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *placeholderService) DownscaleImage(raw []byte, maxWidth int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxWidth <= 0 {
		maxWidth = frameMaxWidth
	}
	if w <= maxWidth {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 70}); err != nil {
			return nil, fmt.Errorf("encode image: %w", err)
		}
		return buf.Bytes(), nil
	}

	scaledH := h * maxWidth / w
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, scaledH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 70}); err != nil {
		return nil, fmt.Errorf("encode scaled image: %w", err)
	}
	return buf.Bytes(), nil
}

func colorIndexFor(title string) int {
	sum := sha256.Sum256([]byte(strings.TrimSpace(strings.ToLower(title))))
	return int(sum[0]) % len(placeholderColors)
}
