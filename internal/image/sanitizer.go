// Package image strips metadata from uploaded images with libvips (bimg)
// before they reach object storage.
package image

import (
	"errors"
	"fmt"

	"github.com/h2non/bimg"
)

// ErrUnsupportedFormat is returned for images libvips cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Config holds sanitizer settings.
type Config struct {
	// Quality for JPEG/WebP/AVIF re-encoding (1-100).
	Quality int

	// MaxDimension bounds the longer side in pixels; 0 keeps the size.
	MaxDimension int
}

// DefaultConfig returns the settings used for gallery uploads.
func DefaultConfig() Config {
	return Config{Quality: 85, MaxDimension: 4096}
}

// Sanitizer re-encodes images without EXIF, XMP or ICC comments, keeping
// the original format.
type Sanitizer struct {
	config Config
}

// NewSanitizer creates a Sanitizer.
func NewSanitizer(config Config) *Sanitizer {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultConfig().Quality
	}
	return &Sanitizer{config: config}
}

// Sanitize returns data re-encoded without metadata. GIFs are returned
// unchanged when libvips cannot save them; the format has no EXIF block.
func (s *Sanitizer) Sanitize(data []byte, mimeType string) ([]byte, error) {
	img := bimg.NewImage(data)
	meta, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	typ := imageType(meta.Type)
	if typ == bimg.UNKNOWN {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, meta.Type)
	}
	if !bimg.IsTypeSupportedSave(typ) {
		if typ == bimg.GIF {
			return data, nil
		}
		return nil, fmt.Errorf("%w: cannot encode %s", ErrUnsupportedFormat, meta.Type)
	}

	opts := bimg.Options{
		Type:          typ,
		Quality:       s.config.Quality,
		StripMetadata: true,
		// Orientation is applied to the pixels before the EXIF tag is dropped.
		Rotate: bimg.Angle(0),
	}
	if limit := s.config.MaxDimension; limit > 0 {
		w, h := meta.Size.Width, meta.Size.Height
		switch {
		case w >= h && w > limit:
			opts.Width = limit
		case h > w && h > limit:
			opts.Height = limit
		}
	}

	out, err := img.Process(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}
	return out, nil
}

func imageType(name string) bimg.ImageType {
	switch name {
	case "jpeg":
		return bimg.JPEG
	case "png":
		return bimg.PNG
	case "webp":
		return bimg.WEBP
	case "gif":
		return bimg.GIF
	case "heif", "avif":
		return bimg.AVIF
	case "tiff":
		return bimg.TIFF
	default:
		return bimg.UNKNOWN
	}
}

// HasEXIF reports whether identifying EXIF fields are present.
func HasEXIF(data []byte) (bool, error) {
	meta, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return false, fmt.Errorf("failed to read image metadata: %w", err)
	}
	exif := meta.EXIF
	return exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != "", nil
}
