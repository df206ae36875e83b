package tender

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/carlosbmello/echef-caixa-web/internal/backend"
	"github.com/carlosbmello/echef-caixa-web/internal/common"
)

const cacheKey = "caixa:tender:methods"

// Backend is the slice of the POS client the tender service depends on.
type Backend interface {
	ListTenderMethods(ctx context.Context) ([]backend.TenderMethod, error)
}

// Service serves the active tender methods with a Redis cache in front of
// the backend. Methods change rarely; a short TTL keeps toggles visible
// without hammering the backend on every payment.
type Service struct {
	Backend Backend
	Cache   *Cache
	Logger  zerolog.Logger
}

// List returns the active tender methods, cache-aside.
func (s *Service) List(ctx context.Context) ([]backend.TenderMethod, error) {
	var cached []backend.TenderMethod
	hit, err := s.Cache.GetJSON(ctx, cacheKey, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("tender cache read failed, falling through")
	}
	if hit {
		return cached, nil
	}
	methods, err := s.Backend.ListTenderMethods(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.SetJSON(ctx, cacheKey, methods); err != nil {
		s.Logger.Warn().Err(err).Msg("tender cache write failed")
	}
	return methods, nil
}

// Method resolves one active tender method by id.
func (s *Service) Method(ctx context.Context, id int64) (*backend.TenderMethod, error) {
	methods, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range methods {
		if methods[i].ID == id && methods[i].Active {
			return &methods[i], nil
		}
	}
	return nil, common.NotFoundError("unknown or inactive tender method")
}

// Refresh drops the cache so the next read refetches from the backend.
func (s *Service) Refresh(ctx context.Context) error {
	return s.Cache.Invalidate(ctx, cacheKey)
}
