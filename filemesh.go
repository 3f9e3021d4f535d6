// Package filemesh wires a complete supervisor/worker runtime for file and
// folder tasks. Most applications interact with this package by:
//  1. Loading a config.Config (config.Load or config.Default)
//  2. Creating a FileMesh via New()
//  3. Submitting requests synchronously (Submit, Execute) or streaming the
//     run trace (Invoke)
//
// One FileMesh is built per process. The registry, the compiled graph and the
// tool sets are immutable after New and shared read-only by concurrent runs.
package filemesh

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/filemesh/agent"
	"github.com/hupe1980/filemesh/config"
	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/engine"
	"github.com/hupe1980/filemesh/graph"
	"github.com/hupe1980/filemesh/history"
	"github.com/hupe1980/filemesh/logging"
	"github.com/hupe1980/filemesh/metrics"
	"github.com/hupe1980/filemesh/model"
	"github.com/hupe1980/filemesh/model/anthropic"
	"github.com/hupe1980/filemesh/model/gemini"
	"github.com/hupe1980/filemesh/model/openai"
	"github.com/hupe1980/filemesh/tool/fs"
)

// Worker roles of the default registry.
const (
	FileOperations   = "FileOperations"
	FileSearch       = "FileSearch"
	FileUtils        = "FileUtils"
	FolderOperations = "FolderOperations"
)

// Role describes one worker: its registry name, the responsibility shown to
// the supervisor and the tool set it may call.
type Role struct {
	Name        string
	Description string
	Tools       fs.ToolSet
}

// DefaultRoles returns the four file and folder workers in menu order.
func DefaultRoles() []Role {
	return []Role{
		{
			Name:        FileOperations,
			Description: "writes, reads, appends to and renames files, creates directories and lists or counts their files.",
			Tools:       fs.SetFileOperations,
		},
		{
			Name:        FileSearch,
			Description: "finds files by name, content, extension, modification date or a keyword in the name.",
			Tools:       fs.SetFileSearch,
		},
		{
			Name:        FileUtils,
			Description: "reports file sizes, zips files, deletes, copies and moves files and finds files by extension.",
			Tools:       fs.SetFileUtils,
		},
		{
			Name:        FolderOperations,
			Description: "creates, lists, searches, counts, renames, moves, copies and sizes folders.",
			Tools:       fs.SetFolderOperations,
		},
	}
}

// Options configures a FileMesh instance.
type Options struct {
	// Model overrides the provider selected by the configuration.
	Model model.Model
	// Logger overrides the logger built from the configuration.
	Logger logging.Logger
	// Callbacks are registered on the engine after the metrics and history
	// callbacks.
	Callbacks []engine.Callback
	// Registry receives the Prometheus collectors. Defaults to a fresh registry.
	Registry *prometheus.Registry
	// Toolbox overrides the toolbox built from the configuration.
	Toolbox *fs.Toolbox
	// Roles overrides DefaultRoles.
	Roles []Role
	// History receives every finished run. Defaults to an in-memory store
	// sized by server.history_size.
	History *history.InMemoryStore
}

// FileMesh is the high-level façade aggregating the engine and its parts.
type FileMesh struct {
	cfg        *config.Config
	logger     logging.Logger
	llm        model.Model
	registry   *core.Registry
	supervisor *agent.Supervisor
	workers    []*agent.Worker
	graph      *graph.Compiled
	metrics    *metrics.Collector
	history    *history.InMemoryStore
	engine     *engine.Engine
}

// New validates cfg and builds the runtime: model, toolbox, workers,
// supervisor, graph, metrics and engine.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*FileMesh, error) {
	opts := Options{Roles: DefaultRoles()}
	for _, fn := range optFns {
		fn(&opts)
	}

	if cfg == nil {
		cfg = config.Default()
	}

	if opts.Model == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		l, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("filemesh: logger: %w", err)
		}
		logger = l
	}

	llm := opts.Model
	if llm == nil {
		m, err := NewModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
		llm = m
	}

	tb := opts.Toolbox
	if tb == nil {
		t, err := fs.New(func(o *fs.Options) {
			o.Root = cfg.Tools.Root
			if cfg.Tools.MaxReadBytes > 0 {
				o.MaxReadBytes = cfg.Tools.MaxReadBytes
			}
		})
		if err != nil {
			return nil, err
		}
		tb = t
	}

	names := make([]string, 0, len(opts.Roles))
	descriptions := make(map[string]string, len(opts.Roles))
	for _, r := range opts.Roles {
		names = append(names, r.Name)
		descriptions[r.Name] = r.Description
	}

	registry, err := core.NewRegistry(names...)
	if err != nil {
		return nil, err
	}

	workers := make([]*agent.Worker, 0, len(opts.Roles))
	nodes := make([]core.Node, 0, len(opts.Roles))
	for _, r := range opts.Roles {
		tools, err := tb.Tools(r.Tools)
		if err != nil {
			return nil, fmt.Errorf("filemesh: role %s: %w", r.Name, err)
		}

		w := agent.NewWorker(r.Name, llm, func(o *agent.WorkerOptions) {
			o.Description = r.Description
			o.Tools = tools
			o.MaxHistoryMessages = cfg.Engine.MaxHistoryMessages
			if cfg.Engine.MaxToolRounds > 0 {
				o.MaxToolRounds = cfg.Engine.MaxToolRounds
			}
		})
		workers = append(workers, w)
		nodes = append(nodes, w)
	}

	supervisor := agent.NewSupervisor(registry, llm, func(o *agent.SupervisorOptions) {
		o.Descriptions = descriptions
		o.RecordDecisions = cfg.Engine.RecordDecisions
		o.MaxHistoryMessages = cfg.Engine.MaxHistoryMessages
	})

	g, err := graph.NewSupervisorGraph(registry, supervisor, nodes, func(o *graph.Options) {
		o.NodeTimeout = cfg.Engine.NodeTimeout
	})
	if err != nil {
		return nil, err
	}

	collector, err := metrics.New(opts.Registry)
	if err != nil {
		return nil, fmt.Errorf("filemesh: metrics: %w", err)
	}

	store := opts.History
	if store == nil {
		store = history.NewInMemoryStore(cfg.Server.HistorySize)
	}

	callbacks := append(collector.Callbacks(), store.Callback())
	callbacks = append(callbacks, opts.Callbacks...)

	eng := engine.New(g, func(o *engine.Options) {
		o.Config = engine.Config{
			MaxConcurrentRuns: cfg.Engine.MaxConcurrentRuns,
			MaxSteps:          cfg.Engine.MaxSteps,
			RunTimeout:        cfg.Engine.RunTimeout,
		}
		o.Logger = logger
		o.Callbacks = callbacks
	})

	info := llm.Info()
	logger.Info("filemesh ready",
		"provider", info.Provider,
		"model", info.Name,
		"roles", registry.Roles(),
		"root", tb.Root(),
	)

	return &FileMesh{
		cfg:        cfg,
		logger:     logger,
		llm:        llm,
		registry:   registry,
		supervisor: supervisor,
		workers:    workers,
		graph:      g,
		metrics:    collector,
		history:    store,
		engine:     eng,
	}, nil
}

// NewModel builds the reasoning capability selected by cfg.Provider.
func NewModel(ctx context.Context, cfg *config.Config) (model.Model, error) {
	p := cfg.ActiveProvider()

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = p.Model
			o.Temperature = p.Temperature
			o.MaxCompletionTokens = p.MaxTokens
			o.APIKey = p.APIKey
			o.BaseURL = p.BaseURL
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(p.Model)
			o.Temperature = p.Temperature
			if p.MaxTokens > 0 {
				o.MaxTokens = p.MaxTokens
			}
			o.APIKey = p.APIKey
			o.BaseURL = p.BaseURL
		}), nil
	case config.ProviderGemini:
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.Model = p.Model
			o.Temperature = float32(p.Temperature)
			if p.MaxTokens > 0 {
				o.MaxOutputTokens = int32(p.MaxTokens)
			}
			o.APIKey = p.APIKey
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderMock:
		return model.NewMockModel("mock"), nil
	default:
		return nil, core.NewError(core.KindInvalidInput, "", fmt.Errorf("unknown provider %q", cfg.Provider))
	}
}

// Config returns the configuration the runtime was built from.
func (fm *FileMesh) Config() *config.Config { return fm.cfg }

// Logger returns the runtime logger.
func (fm *FileMesh) Logger() logging.Logger { return fm.logger }

// Model returns the shared reasoning capability.
func (fm *FileMesh) Model() model.Model { return fm.llm }

// Registry returns the worker role registry.
func (fm *FileMesh) Registry() *core.Registry { return fm.registry }

// Supervisor returns the routing node.
func (fm *FileMesh) Supervisor() *agent.Supervisor { return fm.supervisor }

// Workers returns the worker nodes in registry order.
func (fm *FileMesh) Workers() []*agent.Worker { return fm.workers }

// Graph returns the compiled topology.
func (fm *FileMesh) Graph() *graph.Compiled { return fm.graph }

// Metrics returns the Prometheus collector.
func (fm *FileMesh) Metrics() *metrics.Collector { return fm.metrics }

// History returns the store of finished runs.
func (fm *FileMesh) History() *history.InMemoryStore { return fm.history }

// Engine returns the execution driver.
func (fm *FileMesh) Engine() *engine.Engine { return fm.engine }

// Submit runs text to completion and returns the answer (or a diagnostic)
// with its status code.
func (fm *FileMesh) Submit(ctx context.Context, text string) (string, int) {
	return fm.engine.Submit(ctx, text)
}

// Execute runs text to completion and returns the full result.
func (fm *FileMesh) Execute(ctx context.Context, text string) *engine.Result {
	return fm.engine.Execute(ctx, text)
}

// Invoke starts a run and streams its trace entries.
func (fm *FileMesh) Invoke(ctx context.Context, text string) (string, <-chan core.TraceEntry, <-chan *engine.Result) {
	return fm.engine.Invoke(ctx, text)
}

// Cancel aborts an active run.
func (fm *FileMesh) Cancel(runID string) error { return fm.engine.Cancel(runID) }

// Mermaid renders the topology, highlighting trace when it is non-empty.
func (fm *FileMesh) Mermaid(trace core.Trace) string {
	if len(trace) == 0 {
		return graph.Mermaid(fm.graph, nil)
	}

	nodes := trace.Nodes()
	return graph.Mermaid(fm.graph, &graph.Overlay{
		VisitedNodes: nodes,
		CurrentNode:  nodes[len(nodes)-1],
	})
}
