package task

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/evaluation"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/mcp"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/runtime"
	"github.com/hupe1980/taskmesh/workflow"
	"github.com/tidwall/gjson"
)

// decompositionSystemPrompt instructs the decomposition model to return the
// exact JSON shape domain.Decomposition expects (§4.1 "Inputs/Outputs").
const decompositionSystemPrompt = `You are a task decomposition planner. Given a task description, break it
into an ordered set of subtasks with explicit dependencies. Respond with a
single JSON object of this exact shape:
{"mainTask":"...","subtasks":[{"subtaskId":"s1","subtaskName":"...","description":"...","dependencies":[],"parallelGroup":"g1","estimatedComplexity":1}]}
subtaskId values must be unique. dependencies must reference only other
subtaskId values in this same list. Subtasks with no dependency on each
other should share the same parallelGroup so they can run concurrently.`

// Supervisor drives each submitted Task through decomposition, scheduling
// and evaluation (§4.1), publishing a Broadcaster event at every status
// transition.
type Supervisor struct {
	store        *Store
	decompModel  model.Model
	runner       *runtime.Runner
	evaluator    *evaluation.Evaluator
	broadcaster  *Broadcaster
	workflowFeed chan<- workflow.Event
	logger       logging.Logger
}

// Options configures a Supervisor.
type Options struct {
	Logger       logging.Logger
	WorkflowFeed chan<- workflow.Event
}

// New constructs a Supervisor. decompModel drives decomposition; runner
// executes each agent; evaluator scores the completed task.
func New(decompModel model.Model, runner *runtime.Runner, evaluator *evaluation.Evaluator, optFns ...func(*Options)) *Supervisor {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Supervisor{
		store:        NewStore(),
		decompModel:  decompModel,
		runner:       runner,
		evaluator:    evaluator,
		broadcaster:  NewBroadcaster(),
		workflowFeed: opts.WorkflowFeed,
		logger:       opts.Logger,
	}
}

// Store exposes the underlying Store for read paths (Get/List).
func (s *Supervisor) Store() *Store { return s.store }

// Broadcaster exposes the task-update fan-out for the server's SSE layer.
func (s *Supervisor) Broadcaster() *Broadcaster { return s.broadcaster }

// Submit creates a pending Task and asynchronously drives it to completion.
// It returns immediately with the pending Task; callers observe progress
// via Store().Get or the Broadcaster.
func (s *Supervisor) Submit(ctx context.Context, description string, priority domain.Priority) (*domain.Task, error) {
	if description == "" {
		return nil, fmt.Errorf("task: description must not be empty")
	}
	if !domain.ValidPriority(priority) {
		priority = domain.PriorityMedium
	}
	t := s.store.Create(description, priority)

	go s.run(detachedContext(ctx), t.ID, description)

	return t, nil
}

// detachedContext strips ctx's cancellation (the HTTP request that
// triggered Submit shouldn't abort a multi-minute background task) while
// keeping its values, mirroring the teacher's own pattern of giving
// background invocations a context independent of the caller's request
// lifetime (engine.Engine.Invoke derives its own cancellable context rather
// than reusing the inbound one directly).
func detachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (s *Supervisor) run(ctx context.Context, taskID, description string) {
	s.transition(taskID, domain.TaskDecomposing)

	decomp, err := s.decompose(ctx, description)
	if err != nil {
		s.fail(taskID, "decomposition", err)
		return
	}

	s.store.Mutate(taskID, func(t *domain.Task) {
		t.Decomposition = decomp
		t.AgentCount = len(decomp.Subtasks)
	})
	s.transition(taskID, domain.TaskInProgress)

	configs := make(map[string]domain.AgentConfig, len(decomp.Subtasks))
	for _, st := range decomp.Subtasks {
		configs[st.SubtaskID] = buildAgentConfig(taskID, st)
	}

	sched := workflow.New(s.runner.Run, func(o *workflow.Options) {
		o.Logger = s.logger
		o.Events = s.workflowFeed
	})
	reports, err := sched.Run(ctx, taskID, decomp, configs)
	if err != nil {
		s.fail(taskID, "scheduling", err)
		return
	}

	s.transition(taskID, domain.TaskEvaluating)
	evalSet, err := s.evaluator.Evaluate(ctx, description, reports)
	if err != nil {
		s.logger.Warn("task.evaluation.failed", "task", taskID, "error", err.Error())
	}

	finalStatus := domain.TaskCompleted
	for _, r := range reports {
		if r.Status != domain.AgentCompleted {
			finalStatus = domain.TaskCompletedWithErrors
			break
		}
	}

	s.store.Mutate(taskID, func(t *domain.Task) {
		now := time.Now()
		t.CompletedAt = &now
		t.FinalResult = aggregateResults(reports)
		if evalSet != nil {
			t.Evaluations = evalSet
			score := evalSet.Overall()
			t.OverallScore = &score
		}
		t.Status = finalStatus
	})
	s.transition(taskID, finalStatus)
}

func (s *Supervisor) decompose(ctx context.Context, description string) (*domain.Decomposition, error) {
	mctx := mcp.New(s.decompModel)
	mctx.Add(mcp.NewSystemMessage(decompositionSystemPrompt))
	mctx.Add(mcp.NewUserMessage(description))

	gen, err := mctx.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("decomposition model call failed: %w", err)
	}

	res, ok := mcp.ExtractJSON(gen.Text)
	if !ok {
		return nil, core.NewDecompositionError("", "model did not return a JSON decomposition", gen.Text)
	}

	decomp := &domain.Decomposition{MainTask: res.Get("mainTask").String()}
	res.Get("subtasks").ForEach(func(_, v gjson.Result) bool {
		decomp.Subtasks = append(decomp.Subtasks, domain.Subtask{
			SubtaskID:           v.Get("subtaskId").String(),
			SubtaskName:         v.Get("subtaskName").String(),
			Description:         v.Get("description").String(),
			ParallelGroup:       v.Get("parallelGroup").String(),
			EstimatedComplexity: int(v.Get("estimatedComplexity").Int()),
			Dependencies:        stringSlice(v.Get("dependencies")),
		})
		return true
	})

	if err := decomp.Validate(); err != nil {
		return nil, core.NewDecompositionError("", err.Error(), decomp)
	}
	return decomp, nil
}

func (s *Supervisor) fail(taskID, phase string, err error) {
	s.store.Mutate(taskID, func(t *domain.Task) {
		now := time.Now()
		t.CompletedAt = &now
		t.Status = domain.TaskError
		t.Error = &domain.ErrorRecord{Phase: phase, Message: err.Error()}
	})
	s.transition(taskID, domain.TaskError)
}

func (s *Supervisor) transition(taskID string, status domain.TaskStatus) {
	if status != domain.TaskDecomposing && status != domain.TaskInProgress && status != domain.TaskEvaluating {
		// Terminal statuses are already stamped by the caller before this
		// runs; non-terminal ones need the status written here.
	} else {
		s.store.Mutate(taskID, func(t *domain.Task) { t.Status = status })
	}
	s.broadcaster.Publish(UpdateEvent{TaskID: taskID, Status: string(status)})
}

func aggregateResults(reports map[string]domain.AgentReport) map[string]any {
	out := make(map[string]any, len(reports))
	for id, r := range reports {
		out[id] = r.Result
	}
	return out
}

func stringSlice(res gjson.Result) []string {
	var out []string
	res.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}
