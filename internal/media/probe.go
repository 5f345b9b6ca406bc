// Package media extracts the attributes stored alongside uploaded content:
// image dimensions and BlurHash placeholders, audio and video durations, and
// plain text renderings of rich text.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"os"
	"path/filepath"

	"github.com/simonhull/audiometa"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/asylumproject/asylum-server/internal/domain"
)

// Prober fills the kind-specific attributes of uploaded elements.
// Probing is best effort: an unreadable file yields zero attributes and a
// debug log, never an error, so odd formats can still be uploaded.
type Prober struct {
	logger *slog.Logger
}

// NewProber creates a Prober.
func NewProber(logger *slog.Logger) *Prober {
	return &Prober{logger: logger}
}

// Image decodes the image header for its dimensions and computes a BlurHash.
func (p *Prober) Image(data []byte) *domain.ImageAttrs {
	attrs := &domain.ImageAttrs{}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		p.logger.Debug("image header not readable", "error", err)
		return attrs
	}
	attrs.Width, attrs.Height = cfg.Width, cfg.Height

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		p.logger.Debug("image not decodable", "format", format, "error", err)
		return attrs
	}
	if attrs.BlurHash, err = BlurHash(img); err != nil {
		p.logger.Debug("blurhash failed", "format", format, "error", err)
	}
	return attrs
}

// Media reads the duration of an audio or video upload. audiometa works on
// files, so the payload is spooled to a temp file carrying the original
// extension for format detection.
func (p *Prober) Media(ctx context.Context, fileName string, data []byte) *domain.MediaAttrs {
	attrs := &domain.MediaAttrs{}

	secs, err := duration(ctx, fileName, data)
	if err != nil {
		p.logger.Debug("media duration not readable", "file", fileName, "error", err)
		return attrs
	}
	attrs.LengthSeconds = secs
	return attrs
}

func duration(ctx context.Context, fileName string, data []byte) (float64, error) {
	tmp, err := os.CreateTemp("", "probe-*"+filepath.Ext(fileName))
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}

	file, err := audiometa.OpenContext(ctx, tmp.Name())
	if err != nil {
		return 0, err
	}
	defer file.Close() //nolint:errcheck // read-only handle

	return file.Audio.Duration.Seconds(), nil
}

// Probe returns element attributes for an upload of the given kind.
func (p *Prober) Probe(ctx context.Context, kind domain.ElementKind, fileName string, data []byte) (*domain.ImageAttrs, *domain.MediaAttrs) {
	switch kind {
	case domain.ElementImage:
		return p.Image(data), nil
	case domain.ElementAudio, domain.ElementVideo:
		return nil, p.Media(ctx, fileName, data)
	default:
		return nil, nil
	}
}
