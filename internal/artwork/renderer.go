package artwork

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF format support
	_ "image/jpeg" // JPEG format support
	_ "image/png"  // PNG format support

	"github.com/disintegration/imaging"
	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/webp" // WebP format support
)

// ErrNoArtwork is returned when the handle is nil
var ErrNoArtwork = errors.New("no artwork")

// RendererConfig holds configuration for artwork rendering
type RendererConfig struct {
	Filter imaging.ResampleFilter
	Anchor imaging.Anchor
}

// Renderer renders artwork handles into square base64 PNG thumbnails
type Renderer struct {
	logger *zap.Logger
	config RendererConfig
}

// NewRenderer creates a new artwork renderer
func NewRenderer(logger *zap.Logger) *Renderer {
	return &Renderer{
		logger: logger,
		config: RendererConfig{
			Filter: imaging.Lanczos,
			Anchor: imaging.Center,
		},
	}
}

// Process decodes image data and renders it as a size x size PNG
func (r *Renderer) Process(ctx context.Context, imageData []byte, size int) ([]byte, error) {
	// 1. Decode image from bytes
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// Validate image dimensions to prevent division by zero
	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid tier size: %d", size)
	}

	// 2. Crop to square and scale to the tier
	r.logger.Debug("Rendering artwork",
		zap.Int("srcW", bounds.Dx()), zap.Int("srcH", bounds.Dy()), zap.Int("size", size))
	thumb := imaging.Fill(img, size, size, r.config.Anchor, r.config.Filter)

	// 3. Encode result to PNG (in-memory buffer)
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return buf.Bytes(), nil
}

// Render materializes the handle and returns the base64 PNG of the tier.
// This method satisfies the domain.ArtworkRenderer interface
func (r *Renderer) Render(ctx context.Context, art domain.Artwork, tier domain.ArtworkTier) (string, error) {
	if art == nil {
		return "", ErrNoArtwork
	}

	data, err := art.Data(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load artwork: %w", err)
	}
	if len(data) == 0 {
		return "", ErrNoArtwork
	}

	png, err := r.Process(ctx, data, int(tier))
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
