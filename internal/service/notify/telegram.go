package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	"TradeOrdu/pkg/logger"
	"TradeOrdu/pkg/queue"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// JobType is the queue message type carrying a report for Telegram.
const JobType = "telegram_report"

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Config struct {
	Token     string
	ChatID    int64
	Timeout   time.Duration
	MaxAgents int
}

type Option func(*TelegramNotifier)

// WithBot replaces the Telegram client, mainly for tests.
func WithBot(b botAPI) Option {
	return func(n *TelegramNotifier) { n.bot = b }
}

// WithQueue makes Report enqueue deliveries instead of sending inline.
func WithQueue(q queue.Publisher) Option {
	return func(n *TelegramNotifier) { n.queue = q }
}

// TelegramNotifier posts reports to one chat. The bot is created on first
// use so a bad token does not block startup.
type TelegramNotifier struct {
	cfg    Config
	logger *logger.Logger
	queue  queue.Publisher

	mu  sync.Mutex
	bot botAPI
}

func NewTelegramNotifier(cfg Config, lgr *logger.Logger, opts ...Option) *TelegramNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxAgents <= 0 {
		cfg.MaxAgents = 7
	}
	n := &TelegramNotifier{cfg: cfg, logger: lgr}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Report(ctx context.Context, r models.Report) error {
	if n.queue != nil {
		if err := n.queue.PublishMessage(ctx, JobType, r); err != nil {
			return fmt.Errorf("enqueue telegram report: %w", err)
		}
		return nil
	}
	return n.Send(ctx, r)
}

// Send delivers r now, bounded by the configured timeout.
func (n *TelegramNotifier) Send(ctx context.Context, r models.Report) error {
	bot, err := n.client()
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.cfg.ChatID, FormatReport(r, n.cfg.MaxAgents))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := bot.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return &models.TransportFailure{Op: "telegram send", Err: err}
		}
		n.logger.Debug("telegram report sent", logger.String("symbol", r.Symbol()))
		return nil
	case <-ctx.Done():
		return &models.TransportFailure{Op: "telegram send", Err: ctx.Err()}
	}
}

func (n *TelegramNotifier) client() (botAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bot != nil {
		return n.bot, nil
	}
	if n.cfg.Token == "" {
		return nil, fmt.Errorf("telegram token not configured")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(n.cfg.Token, &http.Client{Timeout: n.cfg.Timeout})
	if err != nil {
		return nil, &models.TransportFailure{Op: "telegram connect", Err: err}
	}
	bot.Buffer = 0
	n.bot = bot
	return bot, nil
}

// DeliveryJob sends queued reports. Failed sends are retried by the queue.
type DeliveryJob struct {
	notifier *TelegramNotifier
}

func NewDeliveryJob(n *TelegramNotifier) *DeliveryJob {
	return &DeliveryJob{notifier: n}
}

func (j *DeliveryJob) Name() string { return "telegram-delivery" }
func (j *DeliveryJob) Type() string { return JobType }

func (j *DeliveryJob) Handle(ctx context.Context, payload interface{}) error {
	r, err := queue.ParsePayload[models.Report](payload)
	if err != nil {
		return err
	}
	return j.notifier.Send(ctx, *r)
}

var (
	_ domrepo.Reporter = (*TelegramNotifier)(nil)
	_ queue.Job        = (*DeliveryJob)(nil)
)
