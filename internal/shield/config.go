package shield

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/madetocreate/ai-shield/internal/audit"
	"github.com/madetocreate/ai-shield/internal/config"
	"github.com/madetocreate/ai-shield/internal/cost"
	"github.com/madetocreate/ai-shield/internal/database"
	"github.com/madetocreate/ai-shield/internal/guardian"
	"github.com/madetocreate/ai-shield/internal/mcp"
	"github.com/madetocreate/ai-shield/internal/policy"
	"github.com/madetocreate/ai-shield/internal/redact"
)

const poolMaxConns = 4

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func poolCloser(p *pgxpool.Pool) io.Closer {
	return closerFunc(func() error { p.Close(); return nil })
}

// FromConfig turns a loaded configuration into Options, opening the audit
// file, database pools and pin file it names. Opened resources are listed
// in Options.Closers and released by Engine.Close.
func FromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (opts Options, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts = Options{
		Preset:           cfg.Preset,
		DisableInjection: !cfg.Scanners.Injection,
		DisablePII:       !cfg.Scanners.PII,
		DisableTools:     !cfg.Scanners.Tools,
		DisableEarlyExit: !cfg.Chain.EarlyExit,
		DisableCache:     !cfg.Cache.Enabled,
		CacheSize:        cfg.Cache.MaxSize,
		CacheTTL:         cfg.Cache.TTL,
		DefaultDeny:      cfg.Tools.DefaultDeny,
		AnomalyThreshold: cfg.Cost.AnomalyThreshold,
		SerializeBudget:  cfg.Cost.Serialize,
		Logger:           log,
	}
	defer func() {
		if err != nil {
			for _, c := range opts.Closers {
				_ = c.Close()
			}
			opts.Closers = nil
		}
	}()

	presets, err := policy.NewEngine()
	if err != nil {
		return opts, err
	}
	if cfg.PacksDir != "" {
		var packs []policy.PackInfo
		if presets, packs, err = policy.LoadPacks(cfg.PacksDir, presets); err != nil {
			return opts, err
		}
		for _, p := range packs {
			log.Debug("preset pack", zap.String("name", p.Name), zap.Bool("enabled", p.Enabled))
		}
	}
	opts.Presets = presets

	if err := applyScannerConfig(&opts, cfg); err != nil {
		return opts, err
	}

	if cfg.Tools.PinsFile != "" {
		pins, err := mcp.LoadPins(cfg.Tools.PinsFile)
		if err != nil {
			return opts, err
		}
		opts.Pins = mcp.NewPinStore(pins...)
	}

	if opts.Budgets, err = budgetsFromConfig(cfg.Cost.Budgets); err != nil {
		return opts, err
	}

	if cfg.Cost.PostgresDSN != "" {
		pool, err := database.Connect(ctx, cfg.Cost.PostgresDSN, poolMaxConns)
		if err != nil {
			return opts, fmt.Errorf("cost store: %w", err)
		}
		opts.Closers = append(opts.Closers, poolCloser(pool))
		store := cost.NewPostgresCounterStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return opts, err
		}
		opts.CounterStore = store
	}

	if cfg.Audit.Enabled {
		if opts.AuditStore, err = openAuditStore(ctx, cfg.Audit, &opts); err != nil {
			return opts, err
		}
		opts.AuditBatchSize = cfg.Audit.BatchSize
		opts.AuditFlushInterval = cfg.Audit.FlushInterval
	}

	return opts, nil
}

// Open is FromConfig followed by New.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Engine, error) {
	opts, err := FromConfig(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e, err := New(opts)
	if err != nil {
		for _, c := range opts.Closers {
			_ = c.Close()
		}
		return nil, err
	}
	return e, nil
}

func applyScannerConfig(opts *Options, cfg *config.Config) error {
	if cfg.Injection.Strictness != "" {
		s, err := guardian.ParseStrictness(cfg.Injection.Strictness)
		if err != nil {
			return err
		}
		opts.Strictness = s
	}
	opts.InjectionThreshold = cfg.Injection.Threshold

	if cfg.PII.Action != "" {
		a, err := redact.ParseAction(cfg.PII.Action)
		if err != nil {
			return err
		}
		opts.PIIAction = a
	}
	if len(cfg.PII.Actions) > 0 {
		opts.PIIActions = make(map[redact.EntityType]redact.Action, len(cfg.PII.Actions))
		for name, action := range cfg.PII.Actions {
			t, err := redact.ParseEntityType(name)
			if err != nil {
				return err
			}
			a, err := redact.ParseAction(action)
			if err != nil {
				return err
			}
			opts.PIIActions[t] = a
		}
	}
	for _, name := range cfg.PII.Exclude {
		t, err := redact.ParseEntityType(name)
		if err != nil {
			return err
		}
		opts.PIIExclude = append(opts.PIIExclude, t)
	}

	if len(cfg.Tools.Policies) > 0 {
		opts.ToolPolicies = make(map[string]mcp.ToolPolicy, len(cfg.Tools.Policies))
		for caller, p := range cfg.Tools.Policies {
			opts.ToolPolicies[caller] = mcp.ToolPolicy{Allowed: p.Allowed, Denied: p.Denied}
		}
	}
	return nil
}

func budgetsFromConfig(in map[string]config.BudgetConfig) (map[string]cost.BudgetConfig, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]cost.BudgetConfig, len(in))
	for id, b := range in {
		period, err := cost.ParsePeriod(b.Period)
		if err != nil {
			return nil, fmt.Errorf("budget %s: %w", id, err)
		}
		out[id] = cost.BudgetConfig{
			SoftLimit: decimal.NewFromFloat(b.SoftLimit),
			HardLimit: decimal.NewFromFloat(b.HardLimit),
			Period:    period,
		}
	}
	return out, nil
}

func openAuditStore(ctx context.Context, cfg config.AuditConfig, opts *Options) (audit.Store, error) {
	var stores audit.MultiStore

	path := cfg.File
	if path == "" && cfg.PostgresDSN == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, config.DefaultLogFile)
	}
	if path != "" {
		fs, err := audit.NewFileStore(path)
		if err != nil {
			return nil, err
		}
		opts.Closers = append(opts.Closers, fs)
		stores = append(stores, fs)
	}

	if cfg.PostgresDSN != "" {
		pool, err := database.Connect(ctx, cfg.PostgresDSN, poolMaxConns)
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		opts.Closers = append(opts.Closers, poolCloser(pool))
		ps := audit.NewPostgresStore(pool)
		if err := ps.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		stores = append(stores, ps)
	}

	switch len(stores) {
	case 0:
		return nil, errors.New("audit enabled without a store")
	case 1:
		return stores[0], nil
	}
	return stores, nil
}
