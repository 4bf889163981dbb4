package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	sent  []tgbotapi.MessageConfig
	err   error
	delay time.Duration
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

type fakeQueue struct {
	msgType string
	payload interface{}
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.msgType, q.payload = msgType, payload
	return nil
}

func report(agents int) models.Report {
	results := make([]models.AgentResult, agents)
	for i := range results {
		results[i] = models.AgentResult{Agent: "agent_" + string(rune('a'+i)), Score: -0.25, Explanation: "rsi_low"}
	}
	return models.Report{
		Decision: models.ConsensusDecision{
			ID: "d-1", Symbol: "BTCUSDT", Direction: models.DirectionLong,
			Edge: 0.8123, Consensus: 0.7, Safe: true, Explanation: "momentum led", Results: results,
		},
		Proposal: models.PositionProposal{Class: models.ClassScalp, Size: 0.456, Stop: 120.5, Target: 265.1},
		Price:    64250.5,
		Patterns: []string{"breakout"},
	}
}

func TestFormatReport(t *testing.T) {
	msg := FormatReport(report(9), 7)

	assert.Contains(t, msg, "Pair: BTCUSDT")
	assert.Contains(t, msg, "Direction: LONG | Strategy: SCALP | Size: 0.46")
	assert.Contains(t, msg, "Stop: 120.5000 | Take profit: 265.1000 | Price: 64250.5")
	assert.Contains(t, msg, "Edge: 0.81 | Consensus: 0.70 | Safe: ✅")
	assert.Contains(t, msg, "agent\\_a: -0.25 | rsi\\_low")
	assert.Equal(t, 7, strings.Count(msg, "▶️"))
}

func TestNotifierSendsMarkdown(t *testing.T) {
	bot := &fakeBot{}
	n := NewTelegramNotifier(Config{ChatID: 42}, logger.Nop(), WithBot(bot))

	require.NoError(t, n.Report(context.Background(), report(2)))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, bot.sent[0].ParseMode)
}

func TestNotifierWrapsFailures(t *testing.T) {
	n := NewTelegramNotifier(Config{ChatID: 42}, logger.Nop(), WithBot(&fakeBot{err: errors.New("403")}))
	var tf *models.TransportFailure
	assert.ErrorAs(t, n.Report(context.Background(), report(1)), &tf)

	slow := NewTelegramNotifier(Config{ChatID: 42, Timeout: 10 * time.Millisecond}, logger.Nop(), WithBot(&fakeBot{delay: 200 * time.Millisecond}))
	err := slow.Report(context.Background(), report(1))
	require.ErrorAs(t, err, &tf)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotifierWithoutTokenFails(t *testing.T) {
	n := NewTelegramNotifier(Config{ChatID: 42}, logger.Nop())
	assert.Error(t, n.Send(context.Background(), report(1)))
}

func TestQueuedDelivery(t *testing.T) {
	bot := &fakeBot{}
	q := &fakeQueue{}
	n := NewTelegramNotifier(Config{ChatID: 7}, logger.Nop(), WithBot(bot), WithQueue(q))

	require.NoError(t, n.Report(context.Background(), report(3)))
	assert.Equal(t, JobType, q.msgType)
	assert.Empty(t, bot.sent)

	// the redis queue hands payloads back as raw JSON
	raw, err := json.Marshal(q.payload)
	require.NoError(t, err)
	job := NewDeliveryJob(n)
	assert.Equal(t, JobType, job.Type())
	require.NoError(t, job.Handle(context.Background(), json.RawMessage(raw)))
	require.Len(t, bot.sent, 1)
	assert.Contains(t, bot.sent[0].Text, "BTCUSDT")
}
