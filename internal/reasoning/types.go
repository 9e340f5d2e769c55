// Package reasoning implements the reasoning engines: a tool registry,
// Chain-of-Verification, a native ReAct agent, and a recursive agent that
// treats an oversized corpus as a sandbox-addressable variable.
package reasoning

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Step is one Thought/Action/Observation cycle in an agent trace.
type Step struct {
	Number      int    `json:"step"`
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	ActionInput string `json:"action_input"`
	Observation string `json:"observation"`
}

// Outcome classifies how a Trace ended.
type Outcome string

const (
	OutcomeFinished Outcome = "finished"
	OutcomeError    Outcome = "error"
	OutcomeMaxSteps Outcome = "max_steps"
)

// Trace is the full record of one agent run.
type Trace struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal"`
	Steps     []Step    `json:"steps"`
	Outcome   Outcome   `json:"outcome"`
	Answer    string    `json:"answer"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// NewTraceID returns an id for a fresh Trace.
func NewTraceID() string { return uuid.NewString() }

// Tool is a callable capability exposed to the agents. The contract is
// deliberately narrow: a single string argument, a single string result.
// Tools that need structured input parse it from the string themselves
// (most accept JSON or a simple delimited form, documented in Describe()).
type Tool interface {
	Name() string
	Describe() string
	Execute(ctx context.Context, input string) (string, error)
}
