package usecase

import (
	"context"

	"github.com/semmidev/arxivsync/internal/domain"
)

// Prober checks a key without transferring the object.
type Prober interface {
	Exists(ctx context.Context, key string) bool
}

// AbsentOnErrorProber reports a key as absent when the store cannot answer, so an
// ambiguous probe leads to a re-upload rather than a silent skip.
type AbsentOnErrorProber struct {
	store  domain.ObjectStore
	logger Logger
}

func NewProber(store domain.ObjectStore, logger Logger) *AbsentOnErrorProber {
	return &AbsentOnErrorProber{store: store, logger: logger}
}

func (p *AbsentOnErrorProber) Exists(ctx context.Context, key string) bool {
	ok, err := p.store.Exists(ctx, key)
	if err != nil {
		p.logger.Warnf("Existence check failed for %s, treating as absent: %v", key, err)
		return false
	}
	return ok
}
