// Package ops loads and validates the JSON configuration a backtest
// run is parameterized by (§6 Configuration).
package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"main/internal/exchange"
	"main/internal/latency"
	"main/internal/queue"
	"main/internal/risk"
	"main/internal/schema"
)

// FileConfig mirrors the JSON config layout for one backtest run.
type FileConfig struct {
	SymbolID      uint32        `json:"symbolId"`
	// SymbolName/VenueName let a run identify its instrument by name
	// instead of a raw numeric SymbolID; ResolveWithRegistry looks
	// them up (registering either if new) and overrides SymbolID with
	// the resolved value. Both empty leaves SymbolID as given.
	SymbolName    string        `json:"symbolName"`
	VenueName     string        `json:"venueName"`
	TickSize      float64       `json:"tickSize"`
	LotSize       float64       `json:"lotSize"`
	AssetType     string        `json:"assetType"`     // "linear" | "inverse"
	MakerFee      float64       `json:"makerFee"`       // negative = rebate
	TakerFee      float64       `json:"takerFee"`
	ExchangeModel string        `json:"exchangeModel"`  // "no_partial_fill" | "partial_fill"
	QueueModel    QueueModelConfig `json:"queueModel"`
	LatencyModel  LatencyModelConfig `json:"latencyModel"`
	Risk          *risk.Config  `json:"risk"` // nil disables pre-trade gating
}

// QueueModelConfig selects and parameterizes a queue.Model.
type QueueModelConfig struct {
	Variant string  `json:"variant"` // "risk_averse" | "log" | "square" | "power"
	Power   float64 `json:"power"`   // used only by "power"
}

// LatencyModelConfig selects and parameterizes a latency.Model.
type LatencyModelConfig struct {
	Variant           string `json:"variant"` // "constant" | "feed" | "interpolated"
	OrderLatencyNanos int64  `json:"orderLatencyNanos"`
	FeedLatencyNanos  int64  `json:"feedLatencyNanos"`
	// FeedLatencyMultiplier scales the "feed" variant's observed
	// exchange->local delay; zero defaults to 1.0. Unused by the other
	// variants.
	FeedLatencyMultiplier float64 `json:"feedLatencyMultiplier"`
	// Samples parameterizes the "interpolated" variant; at least one is
	// required. Unused by the other variants.
	Samples []latency.Sample `json:"samples"`
}

// Loaded is the resolved, ready-to-run configuration.
type Loaded struct {
	SymbolID uint32
	Exchange exchange.Config
	Latency  latency.Model
}

// Load reads and validates a JSON config file into a Loaded run
// configuration.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return cfg.Resolve()
}

// Resolve validates cfg and builds the concrete component values it
// selects. User-caused configuration errors are reported here, at
// load time, rather than discovered mid-run.
func (cfg FileConfig) Resolve() (Loaded, error) {
	if cfg.TickSize <= 0 {
		return Loaded{}, fmt.Errorf("tickSize must be > 0")
	}
	if cfg.LotSize <= 0 {
		return Loaded{}, fmt.Errorf("lotSize must be > 0")
	}

	assetKind, err := parseAssetKind(cfg.AssetType)
	if err != nil {
		return Loaded{}, err
	}
	exchangeModel, err := parseExchangeModel(cfg.ExchangeModel)
	if err != nil {
		return Loaded{}, err
	}
	queueModel, err := cfg.QueueModel.resolve()
	if err != nil {
		return Loaded{}, err
	}
	latencyModel, err := cfg.LatencyModel.resolve()
	if err != nil {
		return Loaded{}, err
	}

	var riskEngine *risk.Engine
	if cfg.Risk != nil {
		riskEngine = risk.NewEngine(*cfg.Risk)
	}

	return Loaded{
		SymbolID: cfg.SymbolID,
		Exchange: exchange.Config{
			TickSize:     cfg.TickSize,
			LotSize:      cfg.LotSize,
			AssetKind:    assetKind,
			Model:        exchangeModel,
			MakerFeeRate: cfg.MakerFee,
			TakerFeeRate: cfg.TakerFee,
			Queue:        queueModel,
			Risk:         riskEngine,
		},
		Latency: latencyModel,
	}, nil
}

// ResolveWithRegistry behaves like Resolve, but when cfg.SymbolName is
// set it resolves (registering on first use) the symbol's numeric ID
// through reg instead of trusting cfg.SymbolID directly, so a suite of
// config files can name instruments consistently without hand-picking
// unique numeric IDs.
func (cfg FileConfig) ResolveWithRegistry(reg *schema.Registry) (Loaded, error) {
	if cfg.SymbolName == "" {
		return cfg.Resolve()
	}

	venueID, ok := reg.VenueIDByName(cfg.VenueName)
	if !ok {
		var err error
		venueID, err = reg.AddVenue(cfg.VenueName)
		if err != nil {
			return Loaded{}, fmt.Errorf("ops: registering venue %q: %w", cfg.VenueName, err)
		}
	}

	symbolID, ok := reg.SymbolIDByName(cfg.SymbolName)
	if !ok {
		var err error
		symbolID, err = reg.AddSymbol(cfg.SymbolName, venueID, schema.ScaleSpec{})
		if err != nil {
			return Loaded{}, fmt.Errorf("ops: registering symbol %q: %w", cfg.SymbolName, err)
		}
	}

	cfg.SymbolID = uint32(symbolID)
	return cfg.Resolve()
}

func parseAssetKind(v string) (schema.AssetKind, error) {
	switch v {
	case "", "linear":
		return schema.AssetKindLinear, nil
	case "inverse":
		return schema.AssetKindInverse, nil
	default:
		return schema.AssetKindUnknown, fmt.Errorf("assetType: unknown variant %q", v)
	}
}

func parseExchangeModel(v string) (schema.ExchangeModel, error) {
	switch v {
	case "", "partial_fill":
		return schema.ExchangeModelPartialFill, nil
	case "no_partial_fill":
		return schema.ExchangeModelNoPartialFill, nil
	default:
		return schema.ExchangeModelUnknown, fmt.Errorf("exchangeModel: unknown variant %q", v)
	}
}

func (c QueueModelConfig) resolve() (queue.Model, error) {
	switch c.Variant {
	case "", "risk_averse":
		return queue.RiskAverse{}, nil
	case "log":
		return queue.ProbabilityQueue{Weight: queue.Log}, nil
	case "square":
		return queue.ProbabilityQueue{Weight: queue.Square}, nil
	case "power":
		if c.Power <= 0 {
			return nil, fmt.Errorf("queueModel: power must be > 0 for the power variant")
		}
		return queue.ProbabilityQueue{Weight: queue.Power(c.Power)}, nil
	default:
		return nil, fmt.Errorf("queueModel: unknown variant %q", c.Variant)
	}
}

func (c LatencyModelConfig) resolve() (latency.Model, error) {
	if c.OrderLatencyNanos < 0 || c.FeedLatencyNanos < 0 {
		return nil, fmt.Errorf("latencyModel: latencies must be non-negative")
	}
	if c.FeedLatencyMultiplier < 0 {
		return nil, fmt.Errorf("latencyModel: feedLatencyMultiplier must be non-negative")
	}
	switch c.Variant {
	case "", "constant":
		return latency.Constant{OrderLatencyNanos: c.OrderLatencyNanos, FeedLatencyNanos: c.FeedLatencyNanos}, nil
	case "feed":
		return &latency.Feed{OrderLatencyNanos: c.OrderLatencyNanos, Multiplier: c.FeedLatencyMultiplier}, nil
	case "interpolated":
		if len(c.Samples) == 0 {
			return nil, fmt.Errorf("latencyModel: interpolated variant requires at least one sample")
		}
		return latency.NewInterpolatedOrder(c.Samples), nil
	default:
		return nil, fmt.Errorf("latencyModel: unknown variant %q", c.Variant)
	}
}
