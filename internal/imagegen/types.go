package imagegen

import (
	"context"
	"errors"

	"genstudio/internal/domain"
)

// ErrNoImages is returned when the provider answered without any output.
var ErrNoImages = errors.New("imagegen: provider returned no images")

// Request describes one text-to-image call.
type Request struct {
	Prompt     string
	Width      int
	Height     int
	NumOutputs int
}

// Generator produces images for a prompt. Implementations must return an
// error, never an empty slice, when nothing was generated.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]domain.Image, error)
}
