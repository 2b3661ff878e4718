// Package workflow schedules a domain.Decomposition's subtasks into ready
// cohorts and dispatches each cohort's agents concurrently, grounded on the
// engine package's goroutine-per-invocation / channel event-forwarding
// pattern and agent.ParallelAgent's WaitGroup fan-out (§4.2).
package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/logging"
)

// Dispatch runs one agent to completion. depResults carries the materialized
// result of every subtask cfg depends on, keyed by subtask id (§4.2 step 4:
// `context = {depId: report(depId).result | depId ∈ deps(a)}`), so the
// dispatched agent sees its predecessors' output rather than running in
// isolation (I3). Dispatch never returns an error: agent failures are
// reflected in the returned AgentReport's Status.
type Dispatch func(ctx context.Context, cfg domain.AgentConfig, depResults map[string]any) domain.AgentReport

// Event is emitted once per subtask status transition, for the server's
// SSE forwarding loop (§6).
type Event struct {
	TaskID    string
	SubtaskID string
	Status    domain.AgentStatus
	Report    *domain.AgentReport
}

// Scheduler runs a Decomposition's subtasks to completion, respecting
// dependency and parallel-group ordering (§4.2).
type Scheduler struct {
	dispatch Dispatch
	logger   logging.Logger
	events   chan<- Event
}

// Options configures a Scheduler.
type Options struct {
	Logger logging.Logger
	// Events, if set, receives one Event per subtask status transition.
	// The caller owns the channel and must keep draining it; Run never
	// blocks waiting on a full channel for longer than ctx allows.
	Events chan<- Event
}

// New constructs a Scheduler that dispatches ready agents via dispatch.
func New(dispatch Dispatch, optFns ...func(*Options)) *Scheduler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Scheduler{dispatch: dispatch, logger: opts.Logger, events: opts.Events}
}

// Run executes every subtask in decomp to a terminal state, honoring
// dependencies and lexicographic parallel-group ordering within a ready
// cohort. It first checks decomp with Validate and, when that fails (an
// empty list, a duplicate or unknown id, or a dependency cycle), returns an
// error without dispatching anything. Otherwise it returns a report per
// subtask id and a nil error: a subtask whose dependency failed is recorded
// as AgentBlockedError rather than aborting the remaining graph (I8).
func (s *Scheduler) Run(ctx context.Context, taskID string, decomp *domain.Decomposition, configs map[string]domain.AgentConfig) (map[string]domain.AgentReport, error) {
	if err := decomp.Validate(); err != nil {
		return nil, fmt.Errorf("workflow: invalid decomposition: %w", err)
	}

	reports := make(map[string]domain.AgentReport, len(decomp.Subtasks))
	done := make(map[string]bool, len(decomp.Subtasks))
	byID := make(map[string]domain.Subtask, len(decomp.Subtasks))
	for _, st := range decomp.Subtasks {
		byID[st.SubtaskID] = st
	}

	// Every subtask starts life as pending, before anything is known to be
	// ready, so the event stream's at-least-once guarantee (§4.2) covers the
	// full lifecycle rather than starting at in-progress.
	for _, st := range decomp.Subtasks {
		s.emit(taskID, st.SubtaskID, domain.AgentPending, nil)
	}

	for len(done) < len(decomp.Subtasks) {
		// Block any subtask whose dependencies are all resolved but at
		// least one did not complete successfully, before computing what's
		// newly ready. This propagates failure through the rest of the
		// chain one layer per iteration, matching I8's cascade semantics.
		blockedAny := false
		for id, st := range byID {
			if done[id] {
				continue
			}
			if s.anyDependencyFailed(st, reports, done) {
				r := domain.AgentReport{SubtaskID: id, Status: domain.AgentBlockedError, ErrorMessage: "blocked by a failed dependency"}
				reports[id] = r
				done[id] = true
				s.emit(taskID, id, domain.AgentBlockedError, &r)
				blockedAny = true
			}
		}
		if blockedAny {
			continue
		}

		cohort := s.readyCohort(byID, done)
		if len(cohort) == 0 {
			// Stall: no dependency failed, yet nothing is ready. Only
			// possible if the graph has an undetected gap; mark every
			// remaining subtask AgentStalled rather than spinning.
			for id := range byID {
				if done[id] {
					continue
				}
				r := domain.AgentReport{SubtaskID: id, Status: domain.AgentStalled, ErrorMessage: "scheduler stalled: no progress possible"}
				reports[id] = r
				done[id] = true
				s.emit(taskID, id, domain.AgentStalled, &r)
			}
			break
		}

		for _, group := range partitionByGroup(cohort) {
			s.runCohort(ctx, taskID, group, configs, reports, done)
		}
	}

	return reports, nil
}

// partitionByGroup splits a lexicographically-sorted (ParallelGroup, then
// SubtaskID) cohort into contiguous same-group runs, preserving order, so
// Run can process distinct parallel groups sequentially (§4.2 step 3) while
// still dispatching every member of a single group concurrently.
func partitionByGroup(cohort []domain.Subtask) [][]domain.Subtask {
	var groups [][]domain.Subtask
	for i := 0; i < len(cohort); {
		j := i + 1
		for j < len(cohort) && cohort[j].ParallelGroup == cohort[i].ParallelGroup {
			j++
		}
		groups = append(groups, cohort[i:j])
		i = j
	}
	return groups
}

// readyCohort returns, in lexicographic parallel-group order, every subtask
// whose dependencies all completed successfully and that itself is not yet
// done.
func (s *Scheduler) readyCohort(byID map[string]domain.Subtask, done map[string]bool) []domain.Subtask {
	var ready []domain.Subtask
	for id, st := range byID {
		if done[id] {
			continue
		}
		if s.dependenciesSatisfied(st, done) {
			ready = append(ready, st)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].ParallelGroup != ready[j].ParallelGroup {
			return ready[i].ParallelGroup < ready[j].ParallelGroup
		}
		return ready[i].SubtaskID < ready[j].SubtaskID
	})
	return ready
}

func (s *Scheduler) dependenciesSatisfied(st domain.Subtask, done map[string]bool) bool {
	for _, dep := range st.Dependencies {
		if !done[dep] {
			return false
		}
	}
	return true
}

// anyDependencyFailed reports whether st has at least one dependency that
// has reached a terminal, non-completed state.
func (s *Scheduler) anyDependencyFailed(st domain.Subtask, reports map[string]domain.AgentReport, done map[string]bool) bool {
	for _, dep := range st.Dependencies {
		if !done[dep] {
			continue
		}
		if r, ok := reports[dep]; ok && r.Status != domain.AgentCompleted {
			return true
		}
	}
	return false
}

// runCohort dispatches every subtask in cohort concurrently and blocks
// until all have a terminal report. Every member of cohort already has every
// dependency resolved (readyCohort's precondition), so each subtask's
// dependency-result map is built synchronously, before any goroutine starts,
// from the still-single-threaded reports map — no locking needed to read it.
func (s *Scheduler) runCohort(ctx context.Context, taskID string, cohort []domain.Subtask, configs map[string]domain.AgentConfig, reports map[string]domain.AgentReport, done map[string]bool) {
	depResultsByID := make(map[string]map[string]any, len(cohort))
	for _, st := range cohort {
		depResultsByID[st.SubtaskID] = s.dependencyResults(st, reports)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, st := range cohort {
		wg.Add(1)
		go func(st domain.Subtask) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					r := domain.AgentReport{SubtaskID: st.SubtaskID, Status: domain.AgentError, ErrorMessage: fmt.Sprintf("panic during dispatch: %v", p)}
					mu.Lock()
					reports[st.SubtaskID] = r
					done[st.SubtaskID] = true
					mu.Unlock()
					s.emit(taskID, st.SubtaskID, domain.AgentError, &r)
				}
			}()
			cfg, ok := configs[st.SubtaskID]
			if !ok {
				r := domain.AgentReport{SubtaskID: st.SubtaskID, Status: domain.AgentError, ErrorMessage: "no agent configuration for subtask"}
				mu.Lock()
				reports[st.SubtaskID] = r
				done[st.SubtaskID] = true
				mu.Unlock()
				s.emit(taskID, st.SubtaskID, domain.AgentError, &r)
				return
			}

			s.emit(taskID, st.SubtaskID, domain.AgentInProgress, nil)
			r := s.dispatch(ctx, cfg, depResultsByID[st.SubtaskID])

			mu.Lock()
			reports[st.SubtaskID] = r
			done[st.SubtaskID] = true
			mu.Unlock()
			s.emit(taskID, st.SubtaskID, r.Status, &r)
		}(st)
	}
	wg.Wait()
}

// dependencyResults builds the §4.2 step 4 context map for st: its
// dependencies' materialized results, keyed by subtask id.
func (s *Scheduler) dependencyResults(st domain.Subtask, reports map[string]domain.AgentReport) map[string]any {
	if len(st.Dependencies) == 0 {
		return nil
	}
	out := make(map[string]any, len(st.Dependencies))
	for _, dep := range st.Dependencies {
		if r, ok := reports[dep]; ok {
			out[dep] = r.Result
		}
	}
	return out
}

func (s *Scheduler) emit(taskID, subtaskID string, status domain.AgentStatus, report *domain.AgentReport) {
	if s.events == nil {
		return
	}
	ev := Event{TaskID: taskID, SubtaskID: subtaskID, Status: status, Report: report}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("workflow.event.dropped", "task", taskID, "subtask", subtaskID)
	}
}
