package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TradeOrdu/internal/middleware"
	"TradeOrdu/internal/usecase"
	"TradeOrdu/pkg/config"
	xhttp "TradeOrdu/pkg/http"
	pkgkafka "TradeOrdu/pkg/kafka"
	"TradeOrdu/pkg/logger"
	"TradeOrdu/pkg/queue"
)

// Streams is the live market data side started before the first cycle.
type Streams interface {
	Start(ctx context.Context)
	Stop()
}

// Loop is the decision cycle driver.
type Loop interface {
	Run(ctx context.Context) error
	RunOnce(ctx context.Context) (usecase.CycleSummary, error)
}

type closer struct {
	name string
	c    io.Closer
}

// App owns the lifecycle of every long-running component. Components are
// started in dependency order and stopped in reverse.
type App struct {
	cfg        *config.Config
	root       *logger.Logger
	logger     *logger.Logger
	streams    Streams
	loop       Loop
	pipelines  []*middleware.ReportPipeline
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	queue      *queue.RedisQueue
	httpServer *xhttp.Server
	closers    []closer
}

type Option func(*App)

func WithPipelines(p ...*middleware.ReportPipeline) Option {
	return func(a *App) { a.pipelines = append(a.pipelines, p...) }
}

// WithConsumer enables Kafka intake. A nil consumer is ignored.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c != nil {
			a.consumer = c
			a.handlers = handlers
		}
	}
}

func WithQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.queue = q }
}

func WithHTTPServer(s *xhttp.Server) Option {
	return func(a *App) { a.httpServer = s }
}

// WithCloser registers a resource released after every component stopped.
// Closers run in reverse registration order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, closer{name: name, c: c})
		}
	}
}

func New(cfg *config.Config, lgr *logger.Logger, streams Streams, loop Loop, opts ...Option) *App {
	a := &App{cfg: cfg, root: lgr, logger: lgr.With(logger.String("component", "app")), streams: streams, loop: loop}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run blocks until SIGINT or SIGTERM, then shuts down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts everything and runs the decision loop until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.start(runCtx, true); err != nil {
		cancel()
		return errors.Join(err, a.shutdown())
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.loop.Run(runCtx) }()

	var loopErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		cancel()
		select {
		case loopErr = <-loopDone:
		case <-time.After(a.cfg.Server.ShutdownTimeout):
			a.logger.Warn("decision loop did not stop in time")
		}
	case loopErr = <-loopDone:
		cancel()
	}
	return errors.Join(loopErr, a.shutdown())
}

// RunOnce starts the streams and sinks, executes a single cycle and shuts
// down. The HTTP server and the Kafka consumer are not started.
func (a *App) RunOnce(ctx context.Context) (usecase.CycleSummary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.start(runCtx, false); err != nil {
		cancel()
		return usecase.CycleSummary{}, errors.Join(err, a.shutdown())
	}
	summary, err := a.loop.RunOnce(runCtx)
	cancel()
	return summary, errors.Join(err, a.shutdown())
}

func (a *App) start(ctx context.Context, serve bool) error {
	a.streams.Start(ctx)
	for _, p := range a.pipelines {
		p.Start(ctx)
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
	}
	if !serve {
		return nil
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("start http server: %w", err)
		}
	}
	a.logger.Info("started",
		logger.Int("pipelines", len(a.pipelines)),
		logger.Bool("consumer", a.consumer != nil),
		logger.Bool("queue", a.queue != nil),
		logger.Bool("http", a.httpServer != nil))
	return nil
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer: %w", err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("queue: %w", err))
		}
	}
	for i := len(a.pipelines) - 1; i >= 0; i-- {
		a.pipelines[i].Stop()
	}
	a.streams.Stop()

	// publish the last aggregated warnings before the producer closes
	a.root.RemoveCollector()

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.c.Close(); err != nil {
			a.logger.Warn("close failed", logger.String("resource", c.name), logger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
