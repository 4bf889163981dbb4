package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	"TradeOrdu/pkg/logger"
)

// CompositeReporter hands each report to every sink. A failing sink does
// not stop delivery to the others.
type CompositeReporter struct {
	sinks   []domrepo.Reporter
	timeout time.Duration
	logger  *logger.Logger
}

func NewCompositeReporter(timeout time.Duration, lgr *logger.Logger, sinks ...domrepo.Reporter) *CompositeReporter {
	return &CompositeReporter{sinks: sinks, timeout: timeout, logger: lgr}
}

func (c *CompositeReporter) Name() string {
	names := make([]string, len(c.sinks))
	for i, s := range c.sinks {
		names[i] = s.Name()
	}
	return "composite[" + strings.Join(names, ",") + "]"
}

func (c *CompositeReporter) Report(ctx context.Context, r models.Report) error {
	var errs []error
	for _, s := range c.sinks {
		if err := c.deliver(ctx, s, r); err != nil {
			c.logger.Warn("report sink failed",
				logger.String("sink", s.Name()),
				logger.String("symbol", r.Symbol()),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (c *CompositeReporter) deliver(ctx context.Context, s domrepo.Reporter, r models.Report) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return s.Report(ctx, r)
}
