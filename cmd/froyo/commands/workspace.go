package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/detyped/pkg/config"
	"github.com/openfroyo/detyped/pkg/engine"
	"github.com/openfroyo/detyped/pkg/policy"
	"github.com/openfroyo/detyped/pkg/stores"
	"github.com/openfroyo/detyped/pkg/telemetry"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

// workspaceOptions selects what openWorkspace wires up.
type workspaceOptions struct {
	// replay rebuilds the tree from the journal
	replay bool
	// record journals new invocations; implies replay
	record bool
	// watchPolicies reloads policy files when they change
	watchPolicies bool
	// metricsAddress enables metrics when set
	metricsAddress string
	// profile is the telemetry profile used when neither --telemetry-profile
	// nor DETYPED_TELEMETRY_PROFILE names one
	profile telemetry.Profile
}

// workspace is a model loaded from the schema with its journal, policies and
// telemetry.
type workspace struct {
	catalog   *config.Catalog
	engine    *engine.Engine
	journal   *stores.SQLiteStore
	policy    *policy.Engine
	loader    *policy.Loader
	telemetry *telemetry.Telemetry
}

func newTelemetry(metricsAddress string, fallback telemetry.Profile) (*telemetry.Telemetry, error) {
	name := telemetryProfile
	if name == "" {
		name = os.Getenv("DETYPED_TELEMETRY_PROFILE")
	}
	profile := fallback
	if name != "" {
		var err error
		if profile, err = telemetry.ParseProfile(name); err != nil {
			return nil, err
		}
	}

	cfg := telemetry.ProfileConfig(profile)
	cfg.ServiceName = "froyo"
	cfg.ServiceVersion = serviceVersion
	cfg.ApplyEnv()
	if environment != "" {
		cfg.Environment = environment
	}
	cfg.Metrics.Enabled = metricsAddress != ""
	if metricsAddress != "" {
		cfg.Metrics.ListenAddress = metricsAddress
	}
	return telemetry.NewTelemetry(cfg)
}

func loadCatalog() (*config.Catalog, error) {
	catalog, err := config.NewParser().Load(schemaPath)
	if err != nil {
		for _, e := range config.ValidationErrors(err) {
			errorColor.Fprintf(os.Stderr, "✗ ")
			fmt.Fprintln(os.Stderr, e.String())
		}
		return nil, fmt.Errorf("failed to load schema %s: %w", schemaPath, err)
	}
	return catalog, nil
}

func openJournal(ctx context.Context) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return store, nil
}

func openWorkspace(ctx context.Context, opts workspaceOptions) (*workspace, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}

	tel, err := newTelemetry(opts.metricsAddress, opts.profile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	w := &workspace{catalog: catalog, telemetry: tel}

	if err := w.openPolicies(ctx, opts.watchPolicies); err != nil {
		w.Close(ctx)
		return nil, err
	}

	m, err := catalog.NewModel()
	if err != nil {
		w.Close(ctx)
		return nil, err
	}

	if opts.replay || opts.record {
		if w.journal, err = openJournal(ctx); err != nil {
			w.Close(ctx)
			return nil, err
		}
	}

	engineOpts := engine.Options{
		Model:       m,
		Policy:      w.policy,
		Telemetry:   tel,
		Environment: tel.Config.Environment,
	}
	if opts.record {
		engineOpts.Journal = w.journal
	}
	if w.engine, err = engine.New(engineOpts); err != nil {
		w.Close(ctx)
		return nil, err
	}

	if w.journal != nil {
		entries, err := w.journal.ListEntries(ctx, stores.EntryFilter{Status: stores.EntryStatusApplied})
		if err != nil {
			w.Close(ctx)
			return nil, fmt.Errorf("failed to read journal: %w", err)
		}
		n, err := w.engine.ReplayEntries(ctx, entries)
		if err != nil {
			w.Close(ctx)
			return nil, err
		}
		log.Debug().Int("entries", n).Str("db", dbPath).Msg("Journal replayed")
	}
	return w, nil
}

func (w *workspace) openPolicies(ctx context.Context, watch bool) error {
	evaluator, err := policy.NewEngine(w.telemetry.Logger.Zerolog())
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	w.policy = evaluator
	if len(policyPaths) == 0 {
		return nil
	}
	if watch {
		w.loader, err = evaluator.Watch(ctx, policyPaths)
		return err
	}
	return evaluator.LoadPolicies(ctx, policyPaths)
}

// Close releases the journal and flushes telemetry.
func (w *workspace) Close(ctx context.Context) {
	if w.loader != nil {
		if err := w.loader.StopWatching(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop policy watcher")
		}
	}
	if w.journal != nil {
		if err := w.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close journal")
		}
	}
	if err := w.telemetry.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
