package usecase

import (
	"context"
	"errors"
	"testing"

	"TradeOrdu/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	symbols []string
	err     error
	quote   string
}

func (s *stubLister) PerpetualSymbols(_ context.Context, quote string) ([]string, error) {
	s.quote = quote
	return s.symbols, s.err
}

func TestResolveSymbolsPrefersConfigured(t *testing.T) {
	lister := &stubLister{symbols: []string{"XRPUSDT"}}
	got, err := ResolveSymbols(context.Background(), []string{"btcusdt", " ETHUSDT", "BTCUSDT", ""}, lister, "usdt", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
	assert.Empty(t, lister.quote)
}

func TestResolveSymbolsFromExchange(t *testing.T) {
	lister := &stubLister{symbols: []string{"ADAUSDT", "BTCUSDT", "ETHUSDT"}}
	got, err := ResolveSymbols(context.Background(), nil, lister, "usdt", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADAUSDT", "BTCUSDT"}, got)
	assert.Equal(t, "USDT", lister.quote)
}

func TestResolveSymbolsFailsFatally(t *testing.T) {
	var fatal *models.FatalConfigurationError

	_, err := ResolveSymbols(context.Background(), nil, &stubLister{}, "USDT", 5)
	require.ErrorAs(t, err, &fatal)
	assert.ErrorIs(t, err, models.ErrNoInstruments)

	_, err = ResolveSymbols(context.Background(), nil, &stubLister{err: errors.New("418")}, "USDT", 5)
	assert.ErrorAs(t, err, &fatal)
}
