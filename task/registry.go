package task

import (
	"strings"

	"github.com/hupe1980/taskmesh/domain"
)

// typeProfile is the fixed system instruction and tool whitelist for one
// domain.AgentType (§4.1 "Agent Registry").
type typeProfile struct {
	instruction string
	whitelist   []string
	keywords    []string
}

// registry maps a subtask's name/description to an AgentType by keyword
// match, falling back to AgentTypeGeneral. Order matters: the first
// matching profile wins, so more specific profiles are listed first.
var registry = []struct {
	agentType domain.AgentType
	profile   typeProfile
}{
	{domain.AgentTypeResearcher, typeProfile{
		instruction: "You are a research agent. Gather and summarize factual information relevant to your assigned subtask. Cite what you relied on in your reasoning.",
		whitelist:   []string{"web_search", "document_retrieval"},
		keywords:    []string{"research", "investigate", "gather", "find", "find information", "look up"},
	}},
	{domain.AgentTypePlanner, typeProfile{
		instruction: "You are a planning agent. Break down your assigned subtask into a concrete sequence of steps and produce a structured plan.",
		whitelist:   []string{"document_retrieval"},
		keywords:    []string{"plan", "organize", "schedule", "break down", "strategy", "roadmap"},
	}},
	{domain.AgentTypeExecutor, typeProfile{
		instruction: "You are an execution agent. Carry out your assigned subtask directly and report the concrete outcome.",
		whitelist:   []string{"web_search", "summarize", "document_retrieval"},
		keywords:    []string{"execute", "perform", "build", "implement", "write", "create", "run"},
	}},
	{domain.AgentTypeEvaluator, typeProfile{
		instruction: "You are an evaluation agent. Critically review the input you are given against your assigned subtask and report your judgment.",
		whitelist:   []string{"summarize"},
		keywords:    []string{"review", "assess", "evaluate", "critique", "validate"},
	}},
}

var generalProfile = typeProfile{
	instruction: "You are a general-purpose agent. Complete your assigned subtask as described, using any available tools as needed.",
	whitelist:   []string{"web_search", "summarize", "document_retrieval"},
}

// classify returns the AgentType and fixed profile for a subtask, matched
// by keyword against its name and description.
func classify(st domain.Subtask) (domain.AgentType, typeProfile) {
	haystack := strings.ToLower(st.SubtaskName + " " + st.Description)
	for _, entry := range registry {
		for _, kw := range entry.profile.keywords {
			if strings.Contains(haystack, kw) {
				return entry.agentType, entry.profile
			}
		}
	}
	return domain.AgentTypeGeneral, generalProfile
}

// buildAgentConfig turns one decomposed Subtask into the AgentConfig the
// workflow scheduler will dispatch to the runtime (§4.1 -> §4.2 handoff).
func buildAgentConfig(taskID string, st domain.Subtask) domain.AgentConfig {
	agentType, profile := classify(st)
	return domain.AgentConfig{
		SubtaskID:         st.SubtaskID,
		TaskID:            taskID,
		TaskAssigned:      subtaskPrompt(st),
		AgentType:         agentType,
		SystemInstruction: profile.instruction,
		ToolWhitelist:     profile.whitelist,
		ParallelGroup:     st.ParallelGroup,
		Dependencies:      st.Dependencies,
	}
}

func subtaskPrompt(st domain.Subtask) string {
	if st.Description != "" {
		return st.SubtaskName + ": " + st.Description
	}
	return st.SubtaskName
}
