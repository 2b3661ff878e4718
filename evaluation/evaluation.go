// Package evaluation scores a completed task's agent reports against the
// model: one LLM call per agent producing the accuracy, completeness and
// coherence ratings plus freeform feedback (efficiency is computed locally
// from the agent's execution time), and one LLM call for the system-level
// verdict, each retried on rate limits under an exponential backoff policy
// (§4.5, §7 I7).
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/mcp"
	"github.com/hupe1980/taskmesh/model"
)

// MaxAttempts bounds the retry policy per evaluator call (I7): at most this
// many attempts total, including the first.
const MaxAttempts = 5

// Evaluator scores a task's agent reports by prompting a model.
type Evaluator struct {
	model        model.Model
	logger       logging.Logger
	buildBackoff func() backoff.BackOff
	maxAttempts  int
}

// Options configures an Evaluator.
type Options struct {
	Logger       logging.Logger
	BuildBackoff func() backoff.BackOff
	// MaxAttempts bounds the retry policy when BuildBackoff is left unset.
	// Zero falls back to MaxAttempts.
	MaxAttempts int
}

// New constructs an Evaluator bound to m.
func New(m model.Model, optFns ...func(*Options)) *Evaluator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = MaxAttempts
	}
	if opts.BuildBackoff == nil {
		attempts := opts.MaxAttempts
		opts.BuildBackoff = func() backoff.BackOff { return defaultBackoff(attempts) }
	}
	return &Evaluator{model: m, logger: opts.Logger, buildBackoff: opts.BuildBackoff, maxAttempts: opts.MaxAttempts}
}

func defaultBackoff(maxAttempts int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	return backoff.WithMaxRetries(b, uint64(maxAttempts-1))
}

// Evaluate scores every agent report in reports and the task as a whole,
// returning a fully populated domain.EvaluationSet.
func (e *Evaluator) Evaluate(ctx context.Context, task string, reports map[string]domain.AgentReport) (*domain.EvaluationSet, error) {
	set := domain.NewEvaluationSet()
	for id, report := range reports {
		eval, err := e.evaluateAgent(ctx, task, report)
		if err != nil {
			return nil, fmt.Errorf("evaluation: agent %s: %w", id, err)
		}
		set.PerAgent[id] = *eval
	}

	sys, err := e.evaluateSystem(ctx, task, reports)
	if err != nil {
		return nil, fmt.Errorf("evaluation: system: %w", err)
	}
	set.System = *sys
	return set, nil
}

func (e *Evaluator) evaluateAgent(ctx context.Context, task string, report domain.AgentReport) (*domain.Evaluation, error) {
	prompt := agentEvaluationPrompt(task, report)
	raw, err := e.promptWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	eval := &domain.Evaluation{
		Accuracy:     rating(raw, "accuracy"),
		Completeness: rating(raw, "completeness"),
		Coherence:    rating(raw, "coherence"),
		Efficiency:   efficiencyRating(report),
		Feedback:     textField(raw, "feedback"),
	}
	eval.Finalize()
	return eval, nil
}

func (e *Evaluator) evaluateSystem(ctx context.Context, task string, reports map[string]domain.AgentReport) (*domain.SystemEvaluation, error) {
	prompt := systemEvaluationPrompt(task, reports)
	raw, err := e.promptWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &domain.SystemEvaluation{
		SystemRating:    scoreField(raw, "systemRating"),
		Analysis:        textField(raw, "analysis"),
		Recommendations: stringArrayField(raw, "recommendations"),
	}, nil
}

// promptWithRetry issues a single-turn generation and returns its raw text,
// retrying *core.RateLimitError failures under the configured backoff
// policy. Any other error ends the call after the attempt that produced it.
func (e *Evaluator) promptWithRetry(ctx context.Context, prompt string) (string, error) {
	var result string
	var attempts int

	operation := func() error {
		attempts++
		mctx := mcp.New(e.model)
		mctx.Add(mcp.NewUserMessage(prompt))
		gen, err := mctx.Generate(ctx)
		if err != nil {
			var rateLimited *core.RateLimitError
			if !errors.As(err, &rateLimited) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = gen.Text
		return nil
	}

	b := e.buildBackoff()
	if d, ok := ctx.Value(rateLimitHintKey{}).(time.Duration); ok && d > 0 {
		b = backoff.WithMaxRetries(backoff.NewConstantBackOff(d), uint64(e.maxAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	notify := func(err error, d time.Duration) {
		e.logger.Warn("evaluation.retry", "attempt", attempts, "error", err.Error(), "backoff", d.String())
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return "", fmt.Errorf("evaluation call failed after %d attempt(s): %w", attempts, err)
	}
	return result, nil
}

// rateLimitHintKey carries the fixed retry interval set by WithRateLimitHint.
// When present, it replaces the exponential policy with a constant interval,
// still capped at the evaluator's MaxAttempts. The RetryAfter field of a
// *core.RateLimitError returned by the model is not read.
type rateLimitHintKey struct{}

// WithRateLimitHint returns a context carrying a fixed retry interval that
// the evaluator waits between attempts instead of its exponential backoff.
func WithRateLimitHint(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, rateLimitHintKey{}, d)
}
