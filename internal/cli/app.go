package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/soyeahso/sprout/internal/agent"
	"github.com/soyeahso/sprout/internal/chat"
	"github.com/soyeahso/sprout/internal/config"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/hooks"
	"github.com/soyeahso/sprout/internal/llm"
	"github.com/soyeahso/sprout/internal/metrics"
	"github.com/soyeahso/sprout/internal/plugin"
	"github.com/soyeahso/sprout/internal/store"
	"github.com/soyeahso/sprout/internal/tools"
)

var errNoProvider = errors.New("no model provider available: set model.apiKey (or SPROUT_API_KEY), or model.provider=mock")

// app is the fully wired conversation stack shared by serve, chat and
// sessions.
type app struct {
	cfg       config.Config
	db        *store.DB
	providers []string
	hooks     *hooks.Manager
	plugins   *plugin.Registry
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	chat      *chat.Service
}

// openDB opens the SQLite database under the data directory, running
// migrations.
func openDB(c config.Config) (*store.DB, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating directories: %w", err)
	}
	dbPath := paths.DatabasePath(c)
	db, err := store.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Debug().Str("path", dbPath).Msg("database opened")
	return db, nil
}

// newCheckpointer selects the checkpoint store from config: the SQLite
// table behind an LRU cache, or the LRU alone.
func newCheckpointer(c config.Config, db *store.DB) (agent.Checkpointer, error) {
	switch c.Chat.CheckpointStore {
	case "memory":
		log.Info().Int("size", c.Chat.CheckpointCacheSize).Msg("using in-memory checkpoints")
		return agent.NewMemoryCheckpointer(c.Chat.CheckpointCacheSize)
	case "", "sqlite":
		log.Info().Msg("using SQLite checkpoints")
		return agent.NewCachedCheckpointer(store.NewCheckpointStore(db, log), c.Chat.CheckpointCacheSize)
	default:
		return nil, fmt.Errorf("unknown checkpoint store %q", c.Chat.CheckpointStore)
	}
}

// buildApp wires store, model, graph, tools, hooks and metrics into a
// chat service. The caller must call Close.
func buildApp(c config.Config) (*app, error) {
	issues := config.Validate(&c)
	for _, issue := range issues {
		if issue.Warning {
			log.Warn().Str("path", issue.Path).Msg(issue.Message)
		} else {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
	}
	if errs := config.Errors(issues); len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed with %d issue(s)", len(errs))
	}

	db, err := openDB(c)
	if err != nil {
		return nil, err
	}

	checkpoints, err := newCheckpointer(c, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	toolReg, err := tools.NewRegistry()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNewMetrics(registry)

	hookMgr := hooks.NewManager(log)
	plugins := plugin.NewRegistry(hookMgr, log)
	for _, p := range []plugin.Plugin{
		&plugin.Audit{},
		&plugin.SlowTurns{Threshold: time.Duration(c.Chat.TimeoutSeconds) * time.Second / 2},
	} {
		if err := plugins.Register(p); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := plugins.InitAll(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	providers := llm.NewRegistryFromConfig(c.Model, log)
	client := agent.NewFailoverClient(providers, c.Model.Model, c.Model.Fallbacks, log)

	graph := agent.NewGraph(agent.GraphConfig{
		Model:            c.Model.Model,
		MaxTokens:        c.Model.MaxTokens,
		Temperature:      c.Model.Temperature,
		RecursionLimit:   c.Chat.RecursionLimit,
		MaxParallelTools: c.Chat.MaxParallelTools,
	}, client, toolReg, checkpoints, m, log)

	svc := chat.NewService(chat.Deps{
		Runner:      graph,
		Titles:      client,
		Tools:       toolReg,
		Threads:     store.NewThreadStore(db, log),
		Checkpoints: checkpoints,
		Data:        store.NewSchoolStore(db, log),
		Hooks:       hookMgr,
		Metrics:     m,
	}, chat.OptionsFromConfig(&c), log)

	return &app{
		cfg:       c,
		db:        db,
		providers: providers.List(),
		hooks:     hookMgr,
		plugins:   plugins,
		registry:  registry,
		metrics:   m,
		chat:      svc,
	}, nil
}

func (a *app) Close() error {
	a.plugins.CloseAll()
	return a.db.Close()
}

// callerFlags are the identity flags of commands that act for a user.
type callerFlags struct {
	id   string
	name string
	role string
}

func (f *callerFlags) register(flags interface {
	StringVar(p *string, name, value, usage string)
}) {
	flags.StringVar(&f.id, "user", store.DemoParentID, "caller user ID")
	flags.StringVar(&f.name, "name", "", "caller display name")
	flags.StringVar(&f.role, "role", string(domain.RoleParent), "caller role (parent, admin)")
}

func (f callerFlags) caller() domain.Caller {
	return domain.Caller{
		ID:   strings.TrimSpace(f.id),
		Name: strings.TrimSpace(f.name),
		Role: domain.ParseRole(f.role),
	}
}
