package agents

import (
	"context"

	"TradeOrdu/internal/domain/models"
)

// Sentiment weighs the external news, social, on-chain, search-trend and
// whale sentiment scalars.
type Sentiment struct{}

func (Sentiment) Name() string { return "sentiment" }
func (Sentiment) Class() models.StrategyClass { return models.ClassMidterm }

func (Sentiment) DefaultParams() models.Params {
	return models.Params{
		"min_sentiment_score":    0.17,
		"news_weight":            0.14,
		"social_weight":          0.11,
		"onchain_weight":         0.12,
		"google_trend_weight":    0.07,
		"whale_sentiment_weight": 0.10,
		"pattern_confirm_weight": 0.12,
		"volume_confirm_weight":  0.10,
		"max_anomaly_risk":       0.22,
		"fake_news_penalty":      0.19,
		"history_boost_window":   12,
	}
}

func (a Sentiment) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, history []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	t := newTrace()
	s := b.Sentiment

	t.addf(s.News*p.Get("news_weight"), "news: %.2f", s.News)
	t.addf(s.Social*p.Get("social_weight"), "social: %.2f", s.Social)
	t.addf(s.Onchain*p.Get("onchain_weight"), "onchain: %.2f", s.Onchain)
	t.addf(s.GoogleTrend*p.Get("google_trend_weight"), "google trend: %.2f", s.GoogleTrend)
	t.addf(s.WhaleSentiment*p.Get("whale_sentiment_weight"), "whale sentiment: %.2f", s.WhaleSentiment)

	if b.Patterns.Breakout || b.Patterns.DoubleBottom {
		t.flags.Pattern = true
		t.add(p.Get("pattern_confirm_weight"), "sentiment + bullish pattern")
	}
	if b.VolumeAnomaly > 1.18 {
		t.add(p.Get("volume_confirm_weight"), "sentiment + volume")
	}

	if s.FakeNews || b.DumpPumpFlag {
		t.score -= p.Get("fake_news_penalty")
		t.hazard(0.13, true, "fake news / dump-pump anomaly")
	}

	t.boost(history, p.Int("history_boost_window"), 4, 0.07, 0.04, "past sentiment success")
	t.shield(p.Get("max_anomaly_risk"), 0.24, 0.53, "sentiment anomaly shield")
	return t.result(a.Name(), a.Class(), p, p.Get("min_sentiment_score")), nil
}
