package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/llm"
)

func TestParseStep_TolerantOfMissingSections(t *testing.T) {
	thought, action, input := parseStep("Thought: I should add two numbers\nAction: arithmetic\nAction Input: 2 + 2")
	require.Equal(t, "I should add two numbers", thought)
	require.Equal(t, "arithmetic", action)
	require.Equal(t, "2 + 2", input)

	thought, action, input = parseStep("no structure here at all")
	require.Empty(t, thought)
	require.Empty(t, action)
	require.Empty(t, input)
}

type scriptedReActGateway struct {
	calls     int
	responses []string
}

func (g *scriptedReActGateway) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
	resp := g.responses[g.calls]
	g.calls++
	return llm.CompletionResult{Text: resp}, nil
}

func TestReActAgent_CompletesWithToolUse(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewArithmeticTool()))

	gw := &scriptedReActGateway{responses: []string{
		"Thought: I need to add 2 and 2\nAction: arithmetic\nAction Input: 2 + 2",
		"Thought: I have the answer\nAction: Final Answer\nAction Input: 4",
	}}
	agent := NewReActAgent(gw, reg, 5)

	trace := agent.Run(context.Background(), "what is 2+2?")
	require.Equal(t, OutcomeFinished, trace.Outcome)
	require.Equal(t, "4", trace.Answer)
	require.Len(t, trace.Steps, 2)
	require.Equal(t, "4", trace.Steps[0].Observation)
}

func TestReActAgent_UnknownToolProducesObservationNotCrash(t *testing.T) {
	reg := NewRegistry()
	gw := &scriptedReActGateway{responses: []string{
		"Thought: try a tool\nAction: nonexistent\nAction Input: x",
		"Thought: give up\nAction: Final Answer\nAction Input: unknown",
	}}
	agent := NewReActAgent(gw, reg, 5)

	trace := agent.Run(context.Background(), "goal")
	require.Contains(t, trace.Steps[0].Observation, "unknown tool")
}

func TestReActAgent_StopsAtStepBudget(t *testing.T) {
	reg := NewRegistry()
	responses := make([]string, 10)
	for i := range responses {
		responses[i] = "Thought: still thinking\nAction: nonexistent\nAction Input: x"
	}
	gw := &scriptedReActGateway{responses: responses}
	agent := NewReActAgent(gw, reg, 3)

	trace := agent.Run(context.Background(), "goal")
	require.Equal(t, OutcomeMaxSteps, trace.Outcome)
	require.Len(t, trace.Steps, 3)
}
