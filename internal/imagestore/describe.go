package imagestore

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

// Info summarizes an input photo for run records and logs.
type Info struct {
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Format      string    `json:"format"`
	CameraMake  string    `json:"cameraMake,omitempty"`
	CameraModel string    `json:"cameraModel,omitempty"`
	DateTaken   time.Time `json:"dateTaken,omitempty"`
}

// Describe decodes the image header and, when present, EXIF camera details.
// Missing EXIF is not an error.
func Describe(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	info := Info{Width: cfg.Width, Height: cfg.Height, Format: format}

	exif, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("format", format).Msg("No EXIF metadata in image")
		return info, nil
	}
	info.CameraMake = strings.TrimSpace(exif.Make)
	info.CameraModel = strings.TrimSpace(exif.Model)
	if t := exif.DateTimeOriginal(); !t.IsZero() {
		info.DateTaken = t
	}
	return info, nil
}
