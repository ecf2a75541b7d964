package imagegen

import (
	"context"
	"fmt"
	"net/url"

	"genstudio/internal/domain"
)

// PlaceholderGenerator returns deterministic stock images. It stands in for
// the real provider in local development when no API key is configured.
type PlaceholderGenerator struct {
	BaseURL string
}

func (p PlaceholderGenerator) Generate(ctx context.Context, req Request) ([]domain.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := p.BaseURL
	if base == "" {
		base = "https://picsum.photos"
	}
	images := make([]domain.Image, 0, req.NumOutputs)
	for i := 0; i < req.NumOutputs; i++ {
		seed := url.PathEscape(fmt.Sprintf("%s-%d", req.Prompt, i))
		images = append(images, domain.Image{
			URL:    fmt.Sprintf("%s/seed/%s/%d/%d", base, seed, req.Width, req.Height),
			Width:  req.Width,
			Height: req.Height,
		})
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	return images, nil
}
