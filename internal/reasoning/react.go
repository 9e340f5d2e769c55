package reasoning

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"manifold/internal/llm"
	"manifold/internal/observability"
)

// finalAnswerAction is the sentinel action name that ends a ReAct loop.
const finalAnswerAction = "Final Answer"

// observationStop is passed to the gateway as a stop sequence so the model
// can't hallucinate a tool's output for itself.
const observationStop = "Observation:"

var (
	thoughtRe = regexp.MustCompile(`(?m)^Thought:\s*(.*)$`)
	actionRe  = regexp.MustCompile(`(?m)^Action:\s*(.*)$`)
	inputRe   = regexp.MustCompile(`(?m)^Action Input:\s*(.*)$`)
)

// ReActAgent runs the Thought -> Action -> Observation loop natively, with
// no external agent-tooling framework.
type ReActAgent struct {
	gw       Completer
	tools    *Registry
	maxSteps int
}

// NewReActAgent builds an agent over the given tool registry with a hard
// step budget.
func NewReActAgent(gw Completer, tools *Registry, maxSteps int) *ReActAgent {
	if maxSteps <= 0 {
		maxSteps = 10
	}
	return &ReActAgent{gw: gw, tools: tools, maxSteps: maxSteps}
}

func (a *ReActAgent) systemPrompt(goal string) string {
	return fmt.Sprintf(`You are a reasoning agent that solves tasks by thinking step by step and
using tools when needed. You have access to the following tools:

%s
Use this exact format for every step:

Thought: <your reasoning>
Action: <tool name, or "%s" when you have the answer>
Action Input: <input to the tool, or your final answer>
Observation: <result of the action — this is filled in for you>

Begin.

Goal: %s`, a.tools.Describe(), finalAnswerAction, goal)
}

// parseStep extracts Thought/Action/Action Input from one model completion.
// It is deliberately tolerant: a missing section just leaves that field
// empty rather than erroring, since models don't always follow the format
// perfectly.
func parseStep(text string) (thought, action, input string) {
	if m := thoughtRe.FindStringSubmatch(text); m != nil {
		thought = strings.TrimSpace(m[1])
	}
	if m := actionRe.FindStringSubmatch(text); m != nil {
		action = strings.TrimSpace(m[1])
	}
	if m := inputRe.FindStringSubmatch(text); m != nil {
		input = strings.TrimSpace(m[1])
	}
	return
}

// Run executes the ReAct loop until a Final Answer, the step budget is
// exhausted, or an unrecoverable error occurs.
func (a *ReActAgent) Run(ctx context.Context, goal string) Trace {
	trace := Trace{ID: NewTraceID(), Goal: goal, StartedAt: time.Now()}
	history := a.systemPrompt(goal)

	for stepNum := 1; stepNum <= a.maxSteps; stepNum++ {
		result, err := a.gw.Complete(ctx, llm.CompletionRequest{
			Prompt:      history,
			Temperature: 0.2,
			MaxTokens:   400,
			Stop:        []string{observationStop},
		})
		if err != nil {
			trace.Outcome = OutcomeError
			trace.Answer = fmt.Sprintf("gateway error: %v", err)
			trace.EndedAt = time.Now()
			return trace
		}

		thought, action, input := parseStep(result.Text)
		step := Step{Number: stepNum, Thought: thought, Action: action, ActionInput: input}

		if action == finalAnswerAction || action == "" && thought != "" && input != "" {
			trace.Steps = append(trace.Steps, step)
			trace.Outcome = OutcomeFinished
			trace.Answer = input
			trace.EndedAt = time.Now()
			return trace
		}

		observation := a.invokeTool(ctx, action, input)
		step.Observation = observation
		trace.Steps = append(trace.Steps, step)

		history += fmt.Sprintf("\nThought: %s\nAction: %s\nAction Input: %s\nObservation: %s\n", thought, action, input, observation)
	}

	trace.Outcome = OutcomeMaxSteps
	trace.EndedAt = time.Now()
	if len(trace.Steps) > 0 {
		trace.Answer = trace.Steps[len(trace.Steps)-1].Observation
	}
	return trace
}

func (a *ReActAgent) invokeTool(ctx context.Context, action, input string) string {
	if action == "" {
		return "no action was specified; reply with Thought/Action/Action Input"
	}
	tool, ok := a.tools.Get(action)
	if !ok {
		return fmt.Sprintf("unknown tool %q; available tools: %s", action, strings.Join(a.tools.Names(), ", "))
	}
	result, err := tool.Execute(ctx, input)
	if err != nil {
		observability.LoggerWithTrace(ctx).Warn().Str("tool", action).Err(err).Msg("reasoning: tool execution failed")
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

// Summarize renders a finished Trace as a short procedural-memory entry,
// suitable for appending to the capture stream so future conversations
// benefit from what was learned solving this goal.
func Summarize(t Trace) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", t.Goal)
	for _, s := range t.Steps {
		fmt.Fprintf(&b, "Step %d: %s -> %s(%s) => %s\n", s.Number, s.Thought, s.Action, s.ActionInput, s.Observation)
	}
	fmt.Fprintf(&b, "Outcome: %s. Answer: %s\n", t.Outcome, t.Answer)
	return b.String()
}
