package main

import (
	"fmt"

	"github.com/hupe1980/taskmesh/config"
	"github.com/hupe1980/taskmesh/evaluation"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/model/anthropic"
	"github.com/hupe1980/taskmesh/model/openai"
	"github.com/hupe1980/taskmesh/runtime"
	"github.com/hupe1980/taskmesh/task"
	"github.com/hupe1980/taskmesh/tool"
	"github.com/hupe1980/taskmesh/vectorstore"
	"github.com/hupe1980/taskmesh/workflow"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// app bundles every long-lived collaborator the serve and submit commands
// share, built once from a resolved config.Config.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	gateway  *vectorstore.ChromemGateway
	sup      *task.Supervisor
	tracker  *task.AgentTracker
	events   chan workflow.Event
}

// buildApp wires the orchestrator's full dependency graph (§4, §6 expansion)
// from cfg: a model.Model per provider, the chromem-go vector store gateway,
// agent memory, the tool registry, the agent runtime, the evaluator, and
// finally the task.Supervisor that drives everything.
func buildApp(cfg *config.Config, logger logging.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := buildModel(cfg)
	if err != nil {
		return nil, err
	}

	gateway, err := vectorstore.New(func(o *vectorstore.Options) { o.Logger = logger })
	if err != nil {
		return nil, fmt.Errorf("wire: vector store: %w", err)
	}

	reg := tool.NewRegistry()
	tool.RegisterIllustrative(reg)

	longTerm := memory.NewLongTerm(gateway)
	shortTerm := memory.NewShortTerm()

	runner := runtime.New(m, reg, func(o *runtime.Options) {
		o.Logger = logger
		o.ShortTerm = shortTerm
		o.LongTerm = longTerm
		o.VectorStore = gateway
		o.MaxLoops = cfg.MaxToolLoops
	})

	evaluator := evaluation.New(m, func(o *evaluation.Options) {
		o.Logger = logger
		o.MaxAttempts = cfg.EvalMaxAttempts
	})

	events := make(chan workflow.Event, 256)
	tracker := task.NewAgentTracker(events, nil)

	sup := task.New(m, runner, evaluator, func(o *task.Options) {
		o.Logger = logger
		o.WorkflowFeed = events
	})

	return &app{cfg: cfg, logger: logger, gateway: gateway, sup: sup, tracker: tracker, events: events}, nil
}

func buildModel(cfg *config.Config) (model.Model, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) { o.APIKey = cfg.LLMAPIKey }), nil
	case "openai":
		client := oai.NewClient(option.WithAPIKey(cfg.LLMAPIKey))
		return openai.NewModelFromClient(&client), nil
	case "mock":
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("wire: unknown llm provider %q", cfg.LLMProvider)
	}
}
