package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/cache"
)

const (
	boardPrefix = "decision"
	boardTTL    = 24 * time.Hour
)

// DecisionBoard keeps the latest report per instrument, and every report by
// decision id for a day, so outcomes can find the agent results they grade.
type DecisionBoard struct {
	cache cache.Service

	mu      sync.RWMutex
	symbols map[string]struct{}
}

func NewDecisionBoard(c cache.Service) *DecisionBoard {
	return &DecisionBoard{cache: c, symbols: make(map[string]struct{})}
}

func symbolKey(symbol string) string { return cache.GenerateKeyWithParams(boardPrefix, "symbol", symbol) }
func idKey(id string) string         { return cache.GenerateKeyWithParams(boardPrefix, "id", id) }

func (b *DecisionBoard) Put(ctx context.Context, r models.Report) error {
	values := map[string]interface{}{symbolKey(r.Symbol()): r}
	if r.Decision.ID != "" {
		values[idKey(r.Decision.ID)] = r
	}
	if err := b.cache.MSet(ctx, values, boardTTL); err != nil {
		return fmt.Errorf("decision board put %s: %w", r.Symbol(), err)
	}
	b.mu.Lock()
	b.symbols[r.Symbol()] = struct{}{}
	b.mu.Unlock()
	return nil
}

func (b *DecisionBoard) get(ctx context.Context, key string) (models.Report, bool, error) {
	var r models.Report
	err := b.cache.Get(ctx, key, &r)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.Report{}, false, nil
	}
	if err != nil {
		return models.Report{}, false, err
	}
	return r, true, nil
}

func (b *DecisionBoard) Latest(ctx context.Context, symbol string) (models.Report, bool, error) {
	return b.get(ctx, symbolKey(symbol))
}

func (b *DecisionBoard) ByID(ctx context.Context, id string) (models.Report, bool, error) {
	return b.get(ctx, idKey(id))
}

// All returns the latest report of every instrument seen, by symbol.
func (b *DecisionBoard) All(ctx context.Context) ([]models.Report, error) {
	b.mu.RLock()
	keys := make([]string, 0, len(b.symbols))
	for s := range b.symbols {
		keys = append(keys, symbolKey(s))
	}
	b.mu.RUnlock()

	found, err := cache.MGetTyped[models.Report](ctx, b.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("decision board list: %w", err)
	}
	out := make([]models.Report, 0, len(found))
	for _, r := range found {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out, nil
}
