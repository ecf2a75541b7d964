package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"genstudio/internal/domain"
	"genstudio/internal/ledger"
)

type generateRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
	NumOutputs  *int   `json:"numOutputs"`
}

type generateResponse struct {
	Images           []domain.Image `json:"images"`
	CostCredits      int            `json:"costCredits"`
	UsingFreeCredits bool           `json:"usingFreeCredits"`
	RemainingCredits int            `json:"remainingCredits"`
}

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := decode(w, r, &body); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req := ledger.GenerateRequest{Prompt: body.Prompt, AspectRatio: body.AspectRatio, NumOutputs: 1}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}
	// Only an absent count defaults; an explicit 0 is rejected by the quote.
	if body.NumOutputs != nil {
		req.NumOutputs = *body.NumOutputs
	}

	res, err := a.Ledger.Generate(r.Context(), a.currentUserID(r), req)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			need := 0
			if quote, qerr := a.Ledger.Policy().Quote(req); qerr == nil {
				need = quote.Cost
			}
			a.json(w, http.StatusPaymentRequired, map[string]any{
				"error":             errorBody{Code: "insufficient_credits", Message: "Insufficient credits and daily free limit reached"},
				"needCredits":       need,
				"dailyLimitReached": errors.Is(err, domain.ErrDailyLimitReached),
			})
			return
		}
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, generateResponse{
		Images:           res.Images,
		CostCredits:      res.CostCredits,
		UsingFreeCredits: res.UsedFreeCredits,
		RemainingCredits: res.RemainingCredits,
	})
}

type generationDTO struct {
	ID           string         `json:"id"`
	Prompt       string         `json:"prompt"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	NumOutputs   int            `json:"numOutputs"`
	Images       []domain.Image `json:"images"`
	CostCredits  int            `json:"costCredits"`
	UsedFreeTier bool           `json:"usedFreeTier"`
	Status       string         `json:"status"`
	CreatedAt    int64          `json:"createdAt"`
}

func (a *App) Generations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	gens, err := a.Ledger.History(r.Context(), a.currentUserID(r), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]generationDTO, 0, len(gens))
	for _, g := range gens {
		images := g.Images
		if images == nil {
			images = []domain.Image{}
		}
		items = append(items, generationDTO{
			ID:           g.ID,
			Prompt:       g.Prompt,
			Width:        g.Width,
			Height:       g.Height,
			NumOutputs:   g.NumOutputs,
			Images:       images,
			CostCredits:  g.CreditsCharged,
			UsedFreeTier: g.UsedFreeTier,
			Status:       string(g.Status),
			CreatedAt:    g.CreatedAt.UnixMilli(),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
