package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
)

// DecisionLogFile is the file name under the log directory.
const DecisionLogFile = "decisions.log"

type logLine struct {
	LoggedAt time.Time `json:"logged_at"`
	models.Report
}

// DecisionLog appends one JSON line per reported decision.
type DecisionLog struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func NewDecisionLog(dir string) (*DecisionLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, DecisionLogFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}
	return &DecisionLog{f: f, path: path}, nil
}

func (l *DecisionLog) Name() string { return "decision_log" }

func (l *DecisionLog) Path() string { return l.path }

func (l *DecisionLog) Report(_ context.Context, r models.Report) error {
	b, err := json.Marshal(logLine{LoggedAt: time.Now().UTC(), Report: r})
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("decision log closed")
	}
	if _, err := l.f.Write(b); err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

func (l *DecisionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

var _ domrepo.Reporter = (*DecisionLog)(nil)
