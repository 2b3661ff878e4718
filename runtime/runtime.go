// Package runtime drives one agent through the §4.3 state machine: build a
// bounded mcp.Context, alternate model generation with tool execution up to
// MaxToolLoops times, and classify the final response into an AgentReport.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/mcp"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/tool"
	"github.com/hupe1980/taskmesh/vectorstore"
)

// MaxToolLoops is the default bound on the tool-call/model-generation cycle
// per agent run (§4.3 "Agent Runtime") when Options.MaxLoops is left unset.
// A run whose model still requests tools after this many rounds of tool
// execution gets one further generation, and its text becomes the result.
const MaxToolLoops = 5

// DefaultTopK bounds how many prior tasks and long-term memories are pulled
// into the priming preamble (§4.3 step 2) when Options.TopK is left unset.
const DefaultTopK = 3

// Runner executes AgentConfigs dispatched by the workflow engine.
type Runner struct {
	model       model.Model
	tools       *tool.Registry
	shortTerm   *memory.ShortTerm
	longTerm    *memory.LongTerm
	vectorStore vectorstore.Gateway
	logger      logging.Logger
	maxLoops    int
	topK        int
}

// Options configures a Runner.
type Options struct {
	ShortTerm *memory.ShortTerm
	LongTerm  *memory.LongTerm
	// VectorStore, if set, is queried for top-K relevant prior tasks during
	// context priming (§4.3 step 2).
	VectorStore vectorstore.Gateway
	Logger      logging.Logger
	// MaxLoops bounds the tool-call/model-generation cycle per agent run.
	// Zero falls back to MaxToolLoops.
	MaxLoops int
	// TopK bounds how many prior tasks and long-term memories are pulled
	// into the priming preamble. Zero falls back to DefaultTopK.
	TopK int
}

// New constructs a Runner bound to m for generation and reg for tool lookup.
func New(m model.Model, reg *tool.Registry, optFns ...func(*Options)) *Runner {
	opts := Options{ShortTerm: memory.NewShortTerm(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.ShortTerm == nil {
		opts.ShortTerm = memory.NewShortTerm()
	}
	if opts.MaxLoops <= 0 {
		opts.MaxLoops = MaxToolLoops
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Runner{
		model:       m,
		tools:       reg,
		shortTerm:   opts.ShortTerm,
		longTerm:    opts.LongTerm,
		vectorStore: opts.VectorStore,
		logger:      opts.Logger,
		maxLoops:    opts.MaxLoops,
		topK:        opts.TopK,
	}
}

// Run executes cfg to completion and returns its terminal AgentReport.
// depResults carries the materialized result of every subtask cfg depends
// on, keyed by subtask id (§4.2 step 4); Run folds it into the agent's
// priming preamble alongside relevant prior tasks and memories (§4.3 step 2)
// so the agent never runs in isolation from its predecessors (I3). Run
// itself never returns an error for agent-level failures: those are
// reflected as AgentError reports so a single agent's failure cannot abort
// the caller's scheduling loop (§4.2 "error cascade" semantics live there,
// not here).
func (r *Runner) Run(ctx context.Context, cfg domain.AgentConfig, depResults map[string]any) (report domain.AgentReport) {
	start := time.Now()
	report = domain.AgentReport{
		SubtaskID:    cfg.SubtaskID,
		TaskAssigned: cfg.TaskAssigned,
		AgentType:    cfg.AgentType,
		StartTime:    start,
	}

	defer func() {
		if p := recover(); p != nil {
			report.Status = domain.AgentError
			report.ErrorMessage = fmt.Sprintf("panic during agent execution: %v", p)
			report.EndTime = time.Now()
		}
	}()

	defs := r.tools.Definitions(cfg.ToolWhitelist)
	mctx := mcp.New(r.model, func(o *mcp.Options) {
		o.ToolDefs = defs
		o.Logger = r.logger
	})
	mctx.Add(mcp.NewSystemMessage(cfg.SystemInstruction))
	r.primeContext(ctx, mctx, cfg, depResults)
	mctx.Add(mcp.NewUserMessage(cfg.TaskAssigned))

	var toolsUsed []string
	toolCalls := 0

	result, err := r.runLoop(ctx, mctx, cfg, &toolsUsed, &toolCalls)
	report.EndTime = time.Now()
	report.ToolsUsed = toolsUsed
	report.Stats = domain.Stats{ExecutionTimeMs: report.ExecutionTimeMs(), ToolCallsMade: toolCalls}

	if err != nil {
		report.Status = domain.AgentError
		report.ErrorMessage = err.Error()
		r.persist(ctx, cfg, report)
		return report
	}

	report.Status = domain.AgentCompleted
	report.Result = result.value
	report.Reasoning = result.reasoning
	r.persist(ctx, cfg, report)

	return report
}

// persist stores report's outcome in long-term memory and the vector
// store's execution collection (§4.3 step 6: "{task, result, reasoning}" on
// success, "{task, error}" on failure), so both are available to later
// priming and to /system/stats.
func (r *Runner) persist(ctx context.Context, cfg domain.AgentConfig, report domain.AgentReport) {
	if r.longTerm != nil {
		entry := memory.Entry{AgentID: cfg.SubtaskID, Task: cfg.TaskAssigned}
		if report.Status == domain.AgentCompleted {
			entry.Result = fmt.Sprintf("%v", report.Result)
			entry.Reasoning = report.Reasoning
		} else {
			entry.Error = report.ErrorMessage
		}
		_ = r.longTerm.Store(ctx, entry)
	}

	if r.vectorStore != nil {
		payload, err := json.Marshal(report)
		if err != nil {
			return
		}
		_ = r.vectorStore.Add(ctx, vectorstore.CollectionAgentExecutions, []vectorstore.Document{{
			ID:      cfg.SubtaskID,
			Content: cfg.TaskAssigned,
			Metadata: map[string]string{
				"agentId": cfg.SubtaskID,
				"status":  string(report.Status),
				"payload": string(payload),
			},
		}})
	}
}

// primeContext pushes the §4.3 step 2 preamble onto mctx, after the system
// instruction and before the task message: the materialized dependency
// results, top-K relevant prior tasks, top-K long-term memories, and the
// agent's short-term scratchpad. Each push is skipped when its source is
// empty so an agent with no history or dependencies sees exactly the
// system instruction and task it was given. Pushed as system-kind messages
// so mcp.Context's eviction never drops them (KindSystem is evict-exempt).
func (r *Runner) primeContext(ctx context.Context, mctx *mcp.Context, cfg domain.AgentConfig, depResults map[string]any) {
	if len(depResults) > 0 {
		if payload, err := json.Marshal(depResults); err == nil {
			mctx.Add(mcp.NewSystemMessage("Dependency results:\n" + string(payload)))
		}
	}

	if r.vectorStore != nil {
		if results, err := r.vectorStore.Query(ctx, vectorstore.CollectionTasks, cfg.TaskAssigned, r.topK, nil); err == nil && len(results) > 0 {
			mctx.Add(mcp.NewSystemMessage("Relevant prior tasks:\n" + formatSearchResults(results)))
		}
	}

	if r.longTerm != nil {
		if results, err := r.longTerm.Search(ctx, cfg.SubtaskID, cfg.TaskAssigned, r.topK); err == nil && len(results) > 0 {
			mctx.Add(mcp.NewSystemMessage("Relevant long-term memories:\n" + formatSearchResults(results)))
		}
	}

	if r.shortTerm != nil {
		if scratch := r.shortTerm.Get(cfg.SubtaskID); len(scratch) > 0 {
			if payload, err := json.Marshal(scratch); err == nil {
				mctx.Add(mcp.NewSystemMessage("Scratchpad:\n" + string(payload)))
			}
		}
	}
}

// formatSearchResults renders search results as a plain numbered list for
// inclusion in a priming message.
func formatSearchResults(results []core.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Content)
	}
	return b.String()
}

type classifiedResult struct {
	value     any
	reasoning string
}

// runLoop alternates model generation with tool execution until the model
// stops requesting tools or the runner's model-call limit is reached.
func (r *Runner) runLoop(ctx context.Context, mctx *mcp.Context, cfg domain.AgentConfig, toolsUsed *[]string, toolCalls *int) (classifiedResult, error) {
	seen := make(map[string]bool)
	limiter := core.NewModelLimiter(r.maxLoops)
	for limiter.Increment() == nil {
		gen, err := mctx.Generate(ctx)
		if err != nil {
			return classifiedResult{}, err
		}
		if len(gen.ToolCalls) == 0 {
			return classify(gen.Text), nil
		}

		entries := r.executeToolCalls(ctx, cfg, gen.ToolCalls)
		*toolCalls += len(entries)
		for _, e := range entries {
			if !seen[e.Name] {
				seen[e.Name] = true
				*toolsUsed = append(*toolsUsed, e.Name)
			}
		}
		mctx.Add(mcp.NewToolResponseMessage(entries))
	}

	// Forced final answer: tell the model no further tools will run and ask
	// once more. The tool declarations stay in the request; tool calls in
	// this last response are not executed, and only its text is used.
	mctx.Add(mcp.NewSystemMessage("The tool budget is exhausted: do not call any more tools. Give your best final answer now."))
	gen, err := mctx.Generate(ctx)
	if err != nil {
		return classifiedResult{}, err
	}
	return classify(gen.Text), nil
}

// executeToolCalls runs every requested call concurrently, isolating panics
// per call so one misbehaving tool cannot take down its siblings.
func (r *Runner) executeToolCalls(ctx context.Context, cfg domain.AgentConfig, calls []mcp.ToolCallRequest) []mcp.ToolResponseEntry {
	entries := make([]mcp.ToolResponseEntry, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call mcp.ToolCallRequest) {
			defer wg.Done()
			entries[i] = r.invokeOne(ctx, cfg, call)
		}(i, call)
	}
	wg.Wait()
	return entries
}

func (r *Runner) invokeOne(ctx context.Context, cfg domain.AgentConfig, call mcp.ToolCallRequest) (entry mcp.ToolResponseEntry) {
	entry = mcp.ToolResponseEntry{ID: call.ID, Name: call.Name}
	defer func() {
		if p := recover(); p != nil {
			entry.Error = fmt.Sprintf("tool panicked: %v", p)
		}
	}()

	var args map[string]interface{}
	if len(call.Args) > 0 {
		if err := json.Unmarshal(call.Args, &args); err != nil {
			entry.Error = fmt.Sprintf("invalid arguments: %v", err)
			return entry
		}
	}

	callCtx := tool.NewCallContext(cfg.TaskID, cfg.SubtaskID, call.ID, r.logger)
	res, err := r.tools.Invoke(callCtx, call.Name, cfg.ToolWhitelist, args)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.Response = res
	return entry
}

// classify turns raw model text into the agent's final result: a parsed
// JSON object when the model returned one, otherwise the raw text.
func classify(text string) classifiedResult {
	if v, ok := mcp.ExtractJSON(text); ok {
		return classifiedResult{value: v.Value(), reasoning: text}
	}
	return classifiedResult{value: text}
}
