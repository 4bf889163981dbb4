package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TradeOrdu/internal/usecase"
	"TradeOrdu/pkg/config"
	"TradeOrdu/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

type fakeStreams struct{ rec *recorder }

func (f fakeStreams) Start(context.Context) { f.rec.add("streams.start") }
func (f fakeStreams) Stop()                 { f.rec.add("streams.stop") }

type fakeLoop struct {
	rec     *recorder
	onceErr error
}

func (f fakeLoop) Run(ctx context.Context) error {
	f.rec.add("loop.run")
	<-ctx.Done()
	return nil
}

func (f fakeLoop) RunOnce(context.Context) (usecase.CycleSummary, error) {
	f.rec.add("loop.once")
	return usecase.CycleSummary{ID: "c1", Decisions: 2}, f.onceErr
}

type fakeCloser struct {
	name string
	rec  *recorder
	err  error
}

func (f fakeCloser) Close() error {
	f.rec.add("close." + f.name)
	return f.err
}

func TestRunOnceStartsAndStopsInOrder(t *testing.T) {
	rec := &recorder{}
	app := New(config.Default(), logger.Nop(), fakeStreams{rec}, fakeLoop{rec: rec},
		WithCloser("cache", fakeCloser{name: "cache", rec: rec}),
		WithCloser("producer", fakeCloser{name: "producer", rec: rec}))

	summary, err := app.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Decisions)
	assert.Equal(t, []string{"streams.start", "loop.once", "streams.stop", "close.producer", "close.cache"}, rec.all())
}

func TestRunOnceJoinsCloseErrors(t *testing.T) {
	rec := &recorder{}
	cycleErr := errors.New("no bundles")
	app := New(config.Default(), logger.Nop(), fakeStreams{rec}, fakeLoop{rec: rec, onceErr: cycleErr},
		WithCloser("log", fakeCloser{name: "log", rec: rec, err: errors.New("disk full")}))

	_, err := app.RunOnce(context.Background())
	assert.ErrorIs(t, err, cycleErr)
	assert.ErrorContains(t, err, "close log: disk full")
}

func TestRunContextStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	app := New(config.Default(), logger.Nop(), fakeStreams{rec}, fakeLoop{rec: rec})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	require.Eventually(t, func() bool {
		for _, s := range rec.all() {
			if s == "loop.run" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, "streams.stop", rec.all()[len(rec.all())-1])
}

func TestNilOptionalComponentsAreSkipped(t *testing.T) {
	rec := &recorder{}
	app := New(config.Default(), logger.Nop(), fakeStreams{rec}, fakeLoop{rec: rec},
		WithConsumer(nil), WithCloser("none", nil))
	assert.Nil(t, app.consumer)
	assert.Empty(t, app.closers)
}
