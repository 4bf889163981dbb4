package usecase

import (
	"context"
	"strings"

	"TradeOrdu/internal/domain/models"
)

type SymbolLister interface {
	PerpetualSymbols(ctx context.Context, quote string) ([]string, error)
}

// ResolveSymbols returns the configured instruments, or when none are
// configured the exchange's trading perpetuals in quote. The result is
// de-duplicated and capped at max. An empty result is a fatal
// configuration error.
func ResolveSymbols(ctx context.Context, configured []string, lister SymbolLister, quote string, max int) ([]string, error) {
	symbols := configured
	if len(symbols) == 0 && lister != nil {
		listed, err := lister.PerpetualSymbols(ctx, strings.ToUpper(quote))
		if err != nil {
			return nil, &models.FatalConfigurationError{Reason: "resolve instruments", Err: err}
		}
		symbols = listed
	}

	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if max > 0 && len(out) == max {
			break
		}
	}
	if len(out) == 0 {
		return nil, &models.FatalConfigurationError{Reason: "no instruments", Err: models.ErrNoInstruments}
	}
	return out, nil
}
