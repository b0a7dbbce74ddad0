package imagefetch

import (
	"bytes"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"mycloset/internal/domain"
)

// MinImageDimension is the smallest accepted edge for uploaded photos.
// Anything smaller carries too little detail for detection or generation.
const MinImageDimension = 100

// ValidateImage checks that data decodes as a supported image format and
// meets the minimum dimensions before any model call spends quota on it.
// Failures wrap domain.ErrValidation.
func ValidateImage(data []byte) (format string, width, height int, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, fmt.Errorf("not a decodable image: %v: %w", err, domain.ErrValidation)
	}
	switch format {
	case "jpeg", "png", "webp":
	default:
		return "", 0, 0, fmt.Errorf("unsupported format %q (supported: jpeg, png, webp): %w", format, domain.ErrValidation)
	}
	if cfg.Width < MinImageDimension || cfg.Height < MinImageDimension {
		return "", 0, 0, fmt.Errorf("image too small: %dx%d, minimum %dx%d: %w",
			cfg.Width, cfg.Height, MinImageDimension, MinImageDimension, domain.ErrValidation)
	}
	return format, cfg.Width, cfg.Height, nil
}
