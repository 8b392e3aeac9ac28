// Package imaging produces the bounded JPEG renditions stored for each upload.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/gift"
)

// Rendition bounds and JPEG qualities.
const (
	MainWidth     = 800
	MainHeight    = 600
	MainQuality   = 80
	ThumbWidth    = 200
	ThumbHeight   = 150
	ThumbQuality  = 60
	MaxUploadSize = 10 << 20
	// MaxPixels caps the decoded size of an upload. Compressed formats can
	// declare dimensions far larger than their byte size suggests.
	MaxPixels = 50_000_000
)

// ErrUndecodable is returned when an upload is not a supported image.
var ErrUndecodable = errors.New("unsupported or corrupt image")

// Rendition is one encoded output of the processor.
type Rendition struct {
	Data   []byte
	Width  int
	Height int
}

// Result holds both renditions of an upload.
type Result struct {
	Main      Rendition
	Thumbnail Rendition
}

// Processor resizes uploads to fit inside fixed bounds and re-encodes them as JPEG.
type Processor struct {
	main  bounds
	thumb bounds
}

type bounds struct {
	width, height, quality int
}

// NewProcessor returns a processor with the standard main and thumbnail bounds.
func NewProcessor() *Processor {
	return &Processor{
		main:  bounds{MainWidth, MainHeight, MainQuality},
		thumb: bounds{ThumbWidth, ThumbHeight, ThumbQuality},
	}
}

// Process decodes raw and returns the main copy and the thumbnail. Aspect
// ratio is preserved and images already inside the bounds are not enlarged.
func (p *Processor) Process(raw []byte) (*Result, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUndecodable, cfg.Width, cfg.Height, MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	main, err := render(src, p.main)
	if err != nil {
		return nil, err
	}
	thumb, err := render(src, p.thumb)
	if err != nil {
		return nil, err
	}

	return &Result{Main: main, Thumbnail: thumb}, nil
}

func render(src image.Image, s bounds) (Rendition, error) {
	var filters []gift.Filter
	b := src.Bounds()
	if b.Dx() > s.width || b.Dy() > s.height {
		filters = append(filters, gift.ResizeToFit(s.width, s.height, gift.LanczosResampling))
	}

	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(b))
	g.Draw(dst, src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: s.quality}); err != nil {
		return Rendition{}, fmt.Errorf("failed to encode image: %w", err)
	}

	return Rendition{Data: buf.Bytes(), Width: dst.Bounds().Dx(), Height: dst.Bounds().Dy()}, nil
}
