package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, time.Minute, c.Cycle.Interval)
	assert.Equal(t, 5, c.Cycle.NBest)
	assert.Equal(t, 25*time.Second, c.Cycle.AgentTimeout)
	assert.Equal(t, 210, c.Exchange.KlineLimit)
	assert.Equal(t, "trade_outcomes", c.Kafka.OutcomeTopic)
	assert.Equal(t, 5, c.Kafka.Producer.MaxAttempts)
	assert.Equal(t, "file", c.Feedback.Backend)
	assert.True(t, c.Feedback.Autolearn)
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.applyEnv(lookupFrom(map[string]string{
		"SYMBOLS":             " btcusdt, ethusdt ,",
		"ANALYSIS_INTERVAL":   "30",
		"AGENT_TIMEOUT_SEC":   "2.5",
		"MAX_PARALLEL_SYMBOL": "3",
		"SIGNAL_N_BEST":       "2",
		"FEEDBACK_AUTOLEARN":  "false",
		"TELEGRAM_BOT_TOKEN":  "123:abc",
		"TELEGRAM_CHAT_ID":    "-1001",
		"REDIS_URI":           "redis://:secret@cache:6380/2",
		"KAFKA_BROKERS":       "k1:9092,k2:9092",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"btcusdt", "ethusdt"}, c.Exchange.Symbols)
	assert.Equal(t, 30*time.Second, c.Cycle.Interval)
	assert.Equal(t, 2500*time.Millisecond, c.Cycle.AgentTimeout)
	assert.Equal(t, 3, c.Cycle.MaxParallelSymbols)
	assert.Equal(t, 2, c.Cycle.NBest)
	assert.False(t, c.Feedback.Autolearn)
	assert.True(t, c.Telegram.Enabled)
	assert.Equal(t, int64(-1001), c.Telegram.ChatID)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.Equal(t, 2, c.Redis.DB)
	assert.Equal(t, "secret", c.Redis.Password)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)

	require.NoError(t, c.Validate())
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, c.Exchange.Symbols)
}

func TestApplyEnvCollectsErrors(t *testing.T) {
	c := Default()
	err := c.applyEnv(lookupFrom(map[string]string{
		"MAX_SYMBOLS":        "many",
		"ANALYSIS_INTERVAL":  "soon",
		"FEEDBACK_AUTOLEARN": "maybe",
		"REDIS_URI":          "redis://host:port",
	}))
	require.Error(t, err)
	for _, key := range []string{"MAX_SYMBOLS", "ANALYSIS_INTERVAL", "FEEDBACK_AUTOLEARN", "REDIS_URI port"} {
		assert.Contains(t, err.Error(), key)
	}
	assert.Equal(t, 30, c.Exchange.MaxSymbols)
}

func TestApplyURIHostOnly(t *testing.T) {
	var r RedisConfig
	r.Host, r.Port = "localhost", 6379
	require.NoError(t, r.applyURI("redis://redis.internal"))
	assert.Equal(t, "redis.internal", r.Host)
	assert.Equal(t, 6379, r.Port)
	assert.Empty(t, r.Password)
	assert.True(t, r.Enabled)
}

func TestValidateCrossSectionRules(t *testing.T) {
	cases := map[string]func(c *Config){
		"redis feedback without redis": func(c *Config) { c.Feedback.Backend = "redis" },
		"queue without redis":          func(c *Config) { c.Telegram.UseQueue = true },
		"kafka without brokers":        func(c *Config) { c.Kafka.Enabled = true },
		"consumer without brokers":     func(c *Config) { c.Kafka.Consumer.Enabled = true },
		"retry bounds inverted":        func(c *Config) { c.Reporting.RetryMin = time.Minute },
		"blank symbol":                 func(c *Config) { c.Exchange.Symbols = []string{"BTCUSDT", " "} },
		"unknown log level":            func(c *Config) { c.Log.Level = "trace" },
		"telegram without token":       func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = 1 },
		"too few bars":                 func(c *Config) { c.Cycle.MinBars = 10 },
		"unknown feedback backend":     func(c *Config) { c.Feedback.Backend = "s3" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
exchange:
  symbols: [solusdt]
cycle:
  interval: 15s
  n_best: 3
agents:
  disabled: [sentiment]
  overrides:
    scalp:
      rsi_lower: 25
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOLUSDT"}, c.Exchange.Symbols)
	assert.Equal(t, 15*time.Second, c.Cycle.Interval)
	assert.Equal(t, 3, c.Cycle.NBest)
	assert.Equal(t, 8, c.Cycle.MaxParallelSymbols)
	assert.Equal(t, []string{"sentiment"}, c.Agents.Disabled)
	assert.Equal(t, 25.0, c.Agents.Overrides["scalp"]["rsi_lower"])

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("cycle: [broken"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
