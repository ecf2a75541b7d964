package ledger

import (
	"sort"

	"genstudio/internal/domain"
	"genstudio/internal/imagegen"
)

// Size is an output resolution in pixels.
type Size struct {
	Width  int
	Height int
}

// LongEdge returns the larger dimension.
func (s Size) LongEdge() int {
	if s.Width > s.Height {
		return s.Width
	}
	return s.Height
}

var aspectSizes = map[string]Size{
	"1:1":  {Width: 1024, Height: 1024},
	"16:9": {Width: 1536, Height: 864},
	"3:2":  {Width: 1500, Height: 1000},
	"2:3":  {Width: 1024, Height: 1536},
	"4:3":  {Width: 1408, Height: 1056},
	"9:16": {Width: 864, Height: 1536},
}

// AspectRatios lists the supported aspect ratios in a stable order.
func AspectRatios() []string {
	out := make([]string, 0, len(aspectSizes))
	for ratio := range aspectSizes {
		out = append(out, ratio)
	}
	sort.Strings(out)
	return out
}

// SizeFor maps an aspect ratio to its fixed output size.
func SizeFor(aspectRatio string) (Size, bool) {
	size, ok := aspectSizes[aspectRatio]
	return size, ok
}

// Cost charges one credit per started megapixel per output.
func Cost(width, height, numOutputs int) int {
	megapixels := (width*height + 999_999) / 1_000_000
	return megapixels * numOutputs
}

// GenerateRequest is the caller's generation input.
type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	NumOutputs  int
}

// Quote is a validated request with its resolved size and cost.
type Quote struct {
	Prompt     string
	Size       Size
	NumOutputs int
	Cost       int
}

// Quote validates req and prices it. It never touches the store.
func (p Policy) Quote(req GenerateRequest) (Quote, error) {
	prompt := imagegen.NormalizePrompt(req.Prompt)
	if prompt == "" {
		return Quote{}, domain.NewValidationError("prompt", "must not be empty")
	}
	if imagegen.PromptTooLong(prompt) {
		return Quote{}, domain.NewValidationError("prompt", "must be at most %d characters", imagegen.MaxPromptRunes)
	}
	size, ok := SizeFor(req.AspectRatio)
	if !ok {
		return Quote{}, domain.NewValidationError("aspectRatio", "unsupported aspect ratio %q", req.AspectRatio)
	}
	if req.NumOutputs < 1 || req.NumOutputs > p.MaxOutputs {
		return Quote{}, domain.NewValidationError("numOutputs", "must be between 1 and %d", p.MaxOutputs)
	}
	if size.LongEdge() > p.MaxLongEdge {
		return Quote{}, domain.NewValidationError("aspectRatio", "resolution %dx%d exceeds %dpx", size.Width, size.Height, p.MaxLongEdge)
	}
	return Quote{
		Prompt:     prompt,
		Size:       size,
		NumOutputs: req.NumOutputs,
		Cost:       Cost(size.Width, size.Height, req.NumOutputs),
	}, nil
}
