package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"genstudio/internal/domain"
	"genstudio/internal/storage"
)

const maxMirrorBytes = 32 << 20

// Mirror copies provider images into an ObjectStore so generation history
// does not depend on the provider's expiring URLs. Mirroring is best effort:
// an image that cannot be copied keeps its provider URL.
type Mirror struct {
	next       Generator
	store      storage.ObjectStore
	prefix     string
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

func NewMirror(next Generator, store storage.ObjectStore, prefix string, logger zerolog.Logger) *Mirror {
	return &Mirror{
		next:       next,
		store:      store,
		prefix:     prefix,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

func (m *Mirror) Generate(ctx context.Context, req Request) ([]domain.Image, error) {
	images, err := m.next.Generate(ctx, req)
	if err != nil || m.store == nil {
		return images, err
	}
	mirrored := make([]domain.Image, len(images))
	copy(mirrored, images)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range mirrored {
		g.Go(func() error {
			url, err := m.copyImage(gctx, mirrored[i].URL)
			if err != nil {
				m.logger.Warn().Err(err).Str("url", mirrored[i].URL).Msg("imagegen: mirror failed, keeping provider url")
				return nil
			}
			mirrored[i].URL = url
			return nil
		})
	}
	_ = g.Wait()
	return mirrored, nil
}

func (m *Mirror) copyImage(ctx context.Context, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMirrorBytes+1))
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if len(data) > maxMirrorBytes {
		return "", fmt.Errorf("download: image exceeds %d bytes", maxMirrorBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	key := storage.ObjectKey(m.prefix, contentType, m.now())
	return m.store.Put(ctx, key, data, contentType)
}
