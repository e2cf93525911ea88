// Command backtest replays a historical event stream through the
// simulation kernel and drives a trivial example strategy against it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/codec"
	"main/internal/ingest"
	"main/internal/kernel"
	"main/internal/mdg"
	"main/internal/obs"
	metric "main/internal/obs/runtimemetric"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/report"
	"main/internal/schema"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON run configuration")
	eventsPath := flag.String("events", "", "Path to a JSON array of ingest event rows (omit to use synthetic data)")
	syntheticEvents := flag.Int("synthetic-events", 2000, "Number of synthetic events to generate when -events is unset")
	stepNanos := flag.Int64("step-nanos", 1_000_000, "Elapse step size in nanoseconds for the example strategy loop")
	walDir := flag.String("wal-dir", "", "WAL directory for order-flow recording (empty disables recording)")
	dbHost := flag.String("db-host", "", "Postgres host for run persistence (empty disables report.Store)")
	dbPort := flag.Int("db-port", 5432, "Postgres port")
	dbUser := flag.String("db-user", "backtest", "Postgres user")
	dbPassword := flag.String("db-password", "", "Postgres password")
	dbName := flag.String("db-name", "backtest", "Postgres database name")
	pyroscopeServer := flag.String("pyroscope-server", "", "Pyroscope server address (empty disables profiling)")
	memMetricsInterval := flag.Duration("mem-metrics-interval", 0, "Interval for periodic runtime memory stats logging (0 disables)")
	flag.Parse()

	if *memMetricsInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var mm metric.RuntimeMemoryMetric
		go mm.RunReportSchedule(ctx, *memMetricsInterval)
	}

	if *pyroscopeServer != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "backtest",
			ServerAddress:   *pyroscopeServer,
			Tags:            map[string]string{"env": "backtest"},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	events, err := loadEvents(*eventsPath, *syntheticEvents, loaded.Exchange.TickSize, loaded.Exchange.LotSize)
	if err != nil {
		log.Fatalf("event load failed: %v", err)
	}

	metrics := obs.NewMetrics()
	k := kernel.New(events, kernel.Config{
		SymbolID: loaded.SymbolID,
		Exchange: loaded.Exchange,
		Latency:  loaded.Latency,
		Metrics:  metrics,
	})

	var writer *recorder.Writer
	if *walDir != "" {
		walCfg := recorder.DefaultConfig(*walDir)
		walCfg.FilePrefix = "backtest"
		writer, err = recorder.NewWriter(walCfg)
		if err != nil {
			log.Fatalf("wal writer init failed: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := writer.Start(ctx); err != nil {
			log.Fatalf("wal writer start failed: %v", err)
		}
		defer func() {
			if err := writer.Close(); err != nil {
				logs.Errorf("backtest: wal writer close: %v", err)
			}
		}()
	}

	startedAt := time.Unix(0, 0).UTC()
	runExampleStrategy(k, writer, *stepNanos)
	finishedAt := time.Unix(0, k.CurrentTimestamp()).UTC()

	_, _, balance, realizedPnL, fees := k.Account()
	logs.Infof("backtest: run complete position=%d balance=%.4f pnl=%.4f fees=%.4f fills=%d",
		k.Position(), balance, realizedPnL, fees, metrics.Snapshot().Fills)

	if *dbHost != "" {
		if err := persistRun(loaded, startedAt, finishedAt, k, balance, realizedPnL, fees, conn.Option{
			Host: *dbHost, Port: *dbPort, User: *dbUser, Password: *dbPassword, Database: *dbName,
		}); err != nil {
			log.Fatalf("report persist failed: %v", err)
		}
	}
}

// runExampleStrategy is a minimal always-quote strategy: it posts a
// two-sided GTC order pair one tick inside the touch once, the first
// time the book has both a bid and an ask more than one tick apart,
// and never re-quotes; it repeatedly elapses time until the
// event stream is exhausted. It exists to exercise every kernel
// operation end to end, not to be profitable. It checks for an OS
// shutdown signal every iteration so a long replay can be interrupted
// cleanly, letting main still report the run's state as of the last
// completed step.
func runExampleStrategy(k *kernel.Kernel, writer *recorder.Writer, stepNanos int64) {
	const qty = schema.Quantity(1)
	posted := false

	for {
		select {
		case <-sys.Shutdown():
			logs.Info("backtest: shutdown signal received, ending run early")
			return
		default:
		}

		book := k.Depth()
		if !posted {
			if bid, haveBid := book.BestBid(); haveBid {
				if ask, haveAsk := book.BestAsk(); haveAsk && ask > bid+1 {
					if _, err := k.SubmitOrder(schema.SideBuy, bid+1, qty, schema.TIFGTC, 0); err != nil {
						logs.Errorf("backtest: submit buy failed: %v", err)
					}
					if _, err := k.SubmitOrder(schema.SideSell, ask-1, qty, schema.TIFGTC, 0); err != nil {
						logs.Errorf("backtest: submit sell failed: %v", err)
					}
					posted = true
				}
			}
		}

		if writer != nil {
			recordOpenOrders(writer, k)
		}

		more, err := k.Elapse(stepNanos)
		if err != nil {
			logs.Errorf("backtest: elapse failed: %v", err)
			return
		}
		if !more {
			return
		}
	}
}

func recordOpenOrders(writer *recorder.Writer, k *kernel.Kernel) {
	for _, o := range k.Orders() {
		payload := codec.EncodeBusMessage(nil, schema.BusMessage{Kind: schema.BusMsgOrder, Order: o})
		header := schema.NewHeader(schema.EventOrderSnapshot, uint16(0), 0, k.CurrentTimestamp(), k.CurrentTimestamp())
		if err := writer.TryAppend(header, payload); err != nil && err != recorder.ErrQueueFull {
			logs.Errorf("backtest: wal append failed: %v", err)
		}
	}
}

// registry lives for the process lifetime; a single backtest run only
// ever resolves one instrument, but keeping a *schema.Registry around
// (rather than resolving ad hoc) is what lets a future multi-symbol
// runner share venue/symbol ids across configs.
var registry = schema.NewRegistry()

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.FileConfig{TickSize: 0.5, LotSize: 1}.ResolveWithRegistry(registry)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ops.Loaded{}, err
	}
	var cfg ops.FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ops.Loaded{}, err
	}
	return cfg.ResolveWithRegistry(registry)
}

func loadEvents(path string, syntheticCount int, tickSize, lotSize float64) ([]schema.MarketEvent, error) {
	if path == "" {
		gen := mdg.New(mdg.Config{TickSize: tickSize, BasePriceTicks: 20000, Qty: 5})
		return gen.NextN(syntheticCount), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []ingest.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	parser, err := ingest.NewParser(ingest.Config{TickSize: tickSize, LotSize: lotSize})
	if err != nil {
		return nil, err
	}
	return parser.Parse(rows)
}

func persistRun(loaded ops.Loaded, startedAt, finishedAt time.Time, k *kernel.Kernel, balance, realizedPnL, fees float64, option conn.Option) error {
	store, err := report.NewStore(option)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveRun(report.RunSummary{
		ID:           uuid.New(),
		SymbolID:     loaded.SymbolID,
		AssetKind:    loaded.Exchange.AssetKind,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		FinalQty:     k.Position(),
		FinalBalance: balance,
		RealizedPnL:  realizedPnL,
		Fees:         fees,
		Fills:        k.Fills(),
	})
}
