package evaluation

import (
	"fmt"
	"strings"

	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/mcp"
	"github.com/tidwall/gjson"
)

func agentEvaluationPrompt(task string, report domain.AgentReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n", task)
	fmt.Fprintf(&sb, "Agent subtask: %s (%s)\n", report.TaskAssigned, report.AgentType)
	fmt.Fprintf(&sb, "Status: %s\n", report.Status)
	fmt.Fprintf(&sb, "Result: %v\n", report.Result)
	if report.ErrorMessage != "" {
		fmt.Fprintf(&sb, "Error: %s\n", report.ErrorMessage)
	}
	sb.WriteString("Rate this agent's contribution on accuracy, completeness and coherence " +
		"(each 0-10 with a one-sentence reasoning) and give one sentence of feedback. " +
		"Respond with a single JSON object: " +
		`{"accuracy":{"score":N,"reasoning":"..."},"completeness":{"score":N,"reasoning":"..."},` +
		`"coherence":{"score":N,"reasoning":"..."},"feedback":"..."}`)
	return sb.String()
}

func systemEvaluationPrompt(task string, reports map[string]domain.AgentReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n", task)
	sb.WriteString("Agent outcomes:\n")
	for id, r := range reports {
		fmt.Fprintf(&sb, "- %s: status=%s result=%v\n", id, r.Status, r.Result)
	}
	sb.WriteString("Rate the overall system's handling of this task 0-10, write a short analysis, " +
		"and list up to three recommendations. Respond with a single JSON object: " +
		`{"systemRating":N,"analysis":"...","recommendations":["..."]}`)
	return sb.String()
}

// efficiencyRating derives the efficiency dimension deterministically from
// the agent's execution time rather than asking the model to guess at it:
// under 1s scores 9, under 5s scores 7, anything slower scores 4.
func efficiencyRating(report domain.AgentReport) domain.Rating {
	ms := report.Stats.ExecutionTimeMs
	calls := report.Stats.ToolCallsMade
	score := 4.0
	switch {
	case ms < 1000:
		score = 9
	case ms < 5000:
		score = 7
	}
	return domain.Rating{
		Score:     score,
		Reasoning: fmt.Sprintf("%dms elapsed across %d tool call(s)", ms, calls),
	}
}

func rating(raw, field string) domain.Rating {
	res, ok := mcp.ExtractJSON(raw)
	if !ok {
		return domain.Rating{}
	}
	obj := res.Get(field)
	return domain.Rating{Score: obj.Get("score").Float(), Reasoning: obj.Get("reasoning").String()}
}

func scoreField(raw, field string) float64 {
	res, ok := mcp.ExtractJSON(raw)
	if !ok {
		return 0
	}
	return res.Get(field).Float()
}

func textField(raw, field string) string {
	res, ok := mcp.ExtractJSON(raw)
	if !ok {
		return ""
	}
	return res.Get(field).String()
}

func stringArrayField(raw, field string) []string {
	res, ok := mcp.ExtractJSON(raw)
	if !ok {
		return nil
	}
	var out []string
	res.Get(field).ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}
