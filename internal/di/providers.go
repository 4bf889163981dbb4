package di

import (
	"context"
	"fmt"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	"TradeOrdu/internal/handler/api"
	mid "TradeOrdu/internal/middleware"
	internalrepo "TradeOrdu/internal/repository"
	"TradeOrdu/internal/service/binance"
	"TradeOrdu/internal/service/notify"
	"TradeOrdu/internal/service/sentiment"
	"TradeOrdu/internal/services/agents"
	"TradeOrdu/internal/services/consensus"
	"TradeOrdu/internal/services/features"
	"TradeOrdu/internal/services/feedback"
	"TradeOrdu/internal/services/strategy"
	"TradeOrdu/internal/usecase"
	"TradeOrdu/pkg/cache"
	pkgch "TradeOrdu/pkg/clickhouse"
	"TradeOrdu/pkg/config"
	xhttp "TradeOrdu/pkg/http"
	pkgkafka "TradeOrdu/pkg/kafka"
	"TradeOrdu/pkg/logger"
	"TradeOrdu/pkg/metrics"
	"TradeOrdu/pkg/queue"
	"TradeOrdu/pkg/server"
)

// Symbols is the resolved instrument universe.
type Symbols []string

// Reporting is the composite sink handed to the orchestrator plus the
// per-sink retry pipelines the app must start and stop.
type Reporting struct {
	Reporter  domrepo.Reporter
	Pipelines []*mid.ReportPipeline
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the root logger. With Kafka enabled, repeated warn
// and error lines are aggregated onto the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	lgr, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Kafka.LogTopic != "" {
		lgr.AddCollector(&logger.CollectionConfig{
			TimeInterval: 30 * time.Second,
			Topic:        cfg.Kafka.LogTopic,
			Publisher:    producer,
		})
	}
	return lgr.With(logger.String("env", cfg.Environment)), nil
}

func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideRedisCache returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.Pool.Size, cfg.Redis.Pool.MinIdle, cfg.Redis.Pool.WaitTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache backs the decision board: memory only, or memory in front
// of Redis so several instances see the same decisions.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(4 * cfg.Exchange.MaxSymbols))
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(4*cfg.Exchange.MaxSymbols),
		cache.WithLocalTTL(cfg.Cycle.Interval/2))
}

func ProvideStateStore(cfg *config.Config, rc *cache.RedisCache) (domrepo.StateStore, error) {
	if cfg.Feedback.Backend == "redis" {
		if rc == nil {
			return nil, &models.FatalConfigurationError{Reason: "feedback backend redis without redis"}
		}
		return internalrepo.NewRedisStateStore(rc), nil
	}
	store, err := internalrepo.NewFileStateStore(cfg.Feedback.ModelDir)
	if err != nil {
		return nil, &models.FatalConfigurationError{Reason: "model dir", Err: err}
	}
	return store, nil
}

// ProvideFeedbackStore loads persisted learning state. Missing or corrupt
// documents start empty.
func ProvideFeedbackStore(state domrepo.StateStore, lgr *logger.Logger, rec domrepo.Metrics) *feedback.Store {
	fb := feedback.NewStore(state, lgr.With(logger.String("component", "feedback")), feedback.WithMetrics(rec))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fb.Load(ctx)
	return fb
}

func ProvideRegistry(cfg *config.Config) (*agents.Registry, error) {
	reg, err := agents.NewRegistry(cfg.Agents.Disabled, cfg.Agents.Overrides)
	if err != nil {
		return nil, &models.FatalConfigurationError{Reason: "agents", Err: err}
	}
	return reg, nil
}

func ProvideHistoryBook(cfg *config.Config) *agents.HistoryBook {
	return agents.NewHistoryBook(cfg.Feedback.HistoryCapacity)
}

func ProvideMarketData(cfg *config.Config, lgr *logger.Logger) *binance.RestClient {
	api := binance.NewFuturesAPI(cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	return binance.NewRestClient(api, binance.RestConfig{
		Timeout:  cfg.Exchange.RESTTimeout,
		Rate:     cfg.Exchange.RESTRate,
		Burst:    cfg.Exchange.RESTBurst,
		CacheTTL: cfg.Exchange.FundingCacheTTL,
	}, lgr.With(logger.String("component", "binance")))
}

// ProvideSymbols uses the configured list, or the exchange listing when
// none is configured.
func ProvideSymbols(cfg *config.Config, rest *binance.RestClient) (Symbols, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Exchange.RESTTimeout)
	defer cancel()
	symbols, err := usecase.ResolveSymbols(ctx, cfg.Exchange.Symbols, rest, cfg.Exchange.QuoteAsset, cfg.Exchange.MaxSymbols)
	if err != nil {
		return nil, err
	}
	return Symbols(symbols), nil
}

func scalpInterval(cfg *config.Config) models.Interval {
	return models.NormalizeInterval(cfg.Cycle.ScalpTimeframe, models.Interval15m)
}

func ProvideStreamManager(cfg *config.Config, symbols Symbols, lgr *logger.Logger, rec domrepo.Metrics) *usecase.StreamManager {
	chCfg := binance.ChannelConfig{
		Backoff:  cfg.Exchange.ReconnectBackoff,
		Ping:     cfg.Exchange.PingInterval,
		Capacity: cfg.Exchange.CandleCapacity,
	}
	iv := scalpInterval(cfg)
	dialer := binance.WSDialer{}
	streamLog := lgr.With(logger.String("component", "stream"))

	factory := func(symbol string, feed models.FeedKind) usecase.StreamChannel {
		if feed == models.FeedDepth {
			return binance.NewDepthChannel(cfg.Exchange.StreamURL, symbol, chCfg, dialer, streamLog, rec)
		}
		return binance.NewKlineChannel(cfg.Exchange.StreamURL, symbol, iv, chCfg, dialer, streamLog, rec)
	}
	return usecase.NewStreamManager(symbols, factory, cfg.Exchange.StaggerDelay, streamLog)
}

// ProvideSentiment returns a nil source when the feed is disabled.
func ProvideSentiment(cfg *config.Config) domrepo.SentimentSource {
	if !cfg.Sentiment.Enabled {
		return nil
	}
	return sentiment.NewClient(sentiment.Config{
		BaseURL:  cfg.Sentiment.BaseURL,
		Timeout:  cfg.Sentiment.Timeout,
		CacheTTL: cfg.Sentiment.CacheTTL,
	})
}

func ProvideBuilder(
	cfg *config.Config,
	streams *usecase.StreamManager,
	rest *binance.RestClient,
	src domrepo.SentimentSource,
	reg *agents.Registry,
	lgr *logger.Logger,
) *features.Builder {
	bc := features.DefaultBuilderConfig()
	bc.Interval = scalpInterval(cfg)
	if secondary := models.NormalizeInterval(cfg.Cycle.MidtermTimeframe, models.Interval1h); secondary != bc.Interval {
		bc.SecondaryFrames = []models.Interval{secondary}
	} else {
		bc.SecondaryFrames = nil
	}
	bc.KlineLimit = cfg.Exchange.KlineLimit
	bc.DepthLimit = cfg.Exchange.DepthLimit
	bc.MinBars = cfg.Cycle.MinBars

	opts := []features.BuilderOption{features.WithDumpPumpThresholds(reg.DumpPumpThresholds())}
	if src != nil {
		opts = append(opts, features.WithSentiment(src))
	}
	return features.NewBuilder(bc, streams, rest, lgr.With(logger.String("component", "features")), opts...)
}

func ProvideRefresher(cfg *config.Config, b *features.Builder, lgr *logger.Logger) *usecase.BundleRefresher {
	return usecase.NewBundleRefresher(b, cfg.Cycle.DataParallelLimit, lgr)
}

func ProvideAgentPool(cfg *config.Config, reg *agents.Registry, hist *agents.HistoryBook, lgr *logger.Logger, rec domrepo.Metrics) *usecase.AgentPool {
	return usecase.NewAgentPool(reg, hist, lgr.With(logger.String("component", "agents")), rec,
		usecase.WithAgentTimeout(cfg.Cycle.AgentTimeout),
		usecase.WithWorkers(cfg.Cycle.AgentWorkers))
}

func ProvideEngine() *consensus.Engine { return consensus.NewEngine() }

func ProvideProposer() *strategy.Proposer { return strategy.NewProposer(strategy.DefaultConfig()) }

// ProvideClickHouseClient returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.DecisionSchema(client.Database())); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideDecisionStore returns a nil interface, not a typed nil, when
// ClickHouse is disabled.
func ProvideDecisionStore(client *pkgch.Client, lgr *logger.Logger) domrepo.DecisionStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewCHDecisionStore(client.DB(), client.Database(), lgr.With(logger.String("component", "clickhouse")))
}

func ProvideDecisionLog(cfg *config.Config) (*internalrepo.DecisionLog, error) {
	if !cfg.Reporting.DecisionLog {
		return nil, nil
	}
	return internalrepo.NewDecisionLog(cfg.Reporting.LogDir)
}

// ProvideQueue returns nil unless Telegram deliveries go through Redis.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, lgr *logger.Logger) *queue.RedisQueue {
	if !cfg.Telegram.Enabled || !cfg.Telegram.UseQueue || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
}

// ProvideTelegram returns nil when Telegram is disabled.
func ProvideTelegram(cfg *config.Config, q *queue.RedisQueue, lgr *logger.Logger) *notify.TelegramNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	tcfg := notify.Config{
		Token:     cfg.Telegram.Token,
		ChatID:    cfg.Telegram.ChatID,
		Timeout:   cfg.Telegram.Timeout,
		MaxAgents: cfg.Telegram.MaxAgents,
	}
	tlog := lgr.With(logger.String("component", "telegram"))
	if q == nil {
		return notify.NewTelegramNotifier(tcfg, tlog)
	}
	n := notify.NewTelegramNotifier(tcfg, tlog, notify.WithQueue(q))
	q.RegisterJob(notify.NewDeliveryJob(n))
	return n
}

// ProvideReporting wraps every enabled sink in its own retry pipeline and
// fans reports out to all of them.
func ProvideReporting(
	cfg *config.Config,
	decisionLog *internalrepo.DecisionLog,
	producer *pkgkafka.Producer,
	store domrepo.DecisionStore,
	tg *notify.TelegramNotifier,
	lgr *logger.Logger,
	rec domrepo.Metrics,
) *Reporting {
	var sinks []domrepo.Reporter
	if decisionLog != nil {
		sinks = append(sinks, decisionLog)
	}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionTopic))
	}
	if store != nil {
		sinks = append(sinks, store)
	}
	if tg != nil {
		sinks = append(sinks, tg)
	}

	rlog := lgr.With(logger.String("component", "reporting"))
	out := &Reporting{}
	wrapped := make([]domrepo.Reporter, 0, len(sinks))
	for _, s := range sinks {
		p := mid.NewReportPipeline(s, rec, rlog.With(logger.String("sink", s.Name())),
			mid.WithBufferSize(cfg.Reporting.RetryBuffer),
			mid.WithBackoff(cfg.Reporting.RetryMin, cfg.Reporting.RetryMax))
		out.Pipelines = append(out.Pipelines, p)
		wrapped = append(wrapped, p)
	}
	out.Reporter = usecase.NewCompositeReporter(cfg.Reporting.Timeout, rlog, wrapped...)
	return out
}

func ProvideBoard(c cache.Service) *usecase.DecisionBoard {
	return usecase.NewDecisionBoard(c)
}

func ProvideOrchestrator(
	cfg *config.Config,
	symbols Symbols,
	refresher *usecase.BundleRefresher,
	pool *usecase.AgentPool,
	engine *consensus.Engine,
	proposer *strategy.Proposer,
	fb *feedback.Store,
	hist *agents.HistoryBook,
	reporting *Reporting,
	board *usecase.DecisionBoard,
	reg *agents.Registry,
	lgr *logger.Logger,
	rec domrepo.Metrics,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(usecase.OrchestratorConfig{
		Interval:    cfg.Cycle.Interval,
		MaxParallel: cfg.Cycle.MaxParallelSymbols,
		NBest:       cfg.Cycle.NBest,
		Autolearn:   cfg.Feedback.Autolearn,
	}, symbols, usecase.Deps{
		Refresher: refresher,
		Pool:      pool,
		Engine:    engine,
		Proposer:  proposer,
		Feedback:  fb,
		History:   hist,
		Reporter:  reporting.Reporter,
		Board:     board,
		Agents:    reg.Names(),
	}, lgr.With(logger.String("component", "orchestrator")), rec)
}

func ProvideOutcomeService(cfg *config.Config, fb *feedback.Store, hist *agents.HistoryBook, board *usecase.DecisionBoard, lgr *logger.Logger) *usecase.OutcomeService {
	return usecase.NewOutcomeService(fb, hist, board, cfg.Feedback.Autolearn, lgr.With(logger.String("component", "outcomes")))
}

// ProvideKafkaConsumer returns nil when outcome intake over Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config, lgr *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(lgr.With(logger.String("component", "kafka-consumer")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{Logger: lgr}))
	return consumer, nil
}

func ProvideOutcomeHandler(cfg *config.Config, svc *usecase.OutcomeService, rec domrepo.Metrics) *usecase.KafkaOutcomeHandler {
	return usecase.NewKafkaOutcomeHandler(cfg.Kafka.OutcomeTopic, svc, rec)
}

// ProvideHTTPServer returns nil when the API is disabled.
func ProvideHTTPServer(
	cfg *config.Config,
	lgr *logger.Logger,
	board *usecase.DecisionBoard,
	store domrepo.DecisionStore,
	fb *feedback.Store,
	streams *usecase.StreamManager,
	loop *usecase.Orchestrator,
	outcomes *usecase.OutcomeService,
	reg *agents.Registry,
) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	h := api.NewDecisionsHandler(lgr.With(logger.String("component", "api")), api.Deps{
		Board:    board,
		History:  store,
		Learning: fb,
		Streams:  streams,
		Cycles:   loop,
		Outcomes: outcomes,
		Agents:   reg.Names(),
	})
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(lgr, h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
	)
}

// ProvideApp assembles the lifecycle. Optional components arrive as nil
// pointers and are only registered when present.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	streams *usecase.StreamManager,
	loop *usecase.Orchestrator,
	reporting *Reporting,
	consumer *pkgkafka.Consumer,
	handler *usecase.KafkaOutcomeHandler,
	q *queue.RedisQueue,
	httpServer *xhttp.Server,
	boardCache cache.Service,
	rc *cache.RedisCache,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	decisionLog *internalrepo.DecisionLog,
) *server.App {
	opts := []server.Option{
		server.WithPipelines(reporting.Pipelines...),
		server.WithConsumer(consumer, handler),
	}
	if q != nil {
		opts = append(opts, server.WithQueue(q))
	}
	if httpServer != nil {
		opts = append(opts, server.WithHTTPServer(httpServer))
	}

	// closed in reverse: the board cache before the Redis connection it wraps
	if rc != nil {
		opts = append(opts, server.WithCloser("redis", rc))
	}
	if c, ok := boardCache.(interface{ Close() error }); ok {
		opts = append(opts, server.WithCloser("board cache", c))
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka producer", producer))
	}
	if chClient != nil {
		opts = append(opts, server.WithCloser("clickhouse", chClient))
	}
	if decisionLog != nil {
		opts = append(opts, server.WithCloser("decision log", decisionLog))
	}
	return server.New(cfg, lgr, streams, loop, opts...)
}
