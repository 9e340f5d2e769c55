package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/llm"
)

type scriptedGateway struct {
	calls     int
	responses []string
}

func (g *scriptedGateway) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
	resp := g.responses[g.calls]
	g.calls++
	return llm.CompletionResult{Text: resp}, nil
}

func TestChainOfVerification_DetectsRevision(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		"The Eiffel Tower is 330 meters tall.",                                       // draft
		"1. How tall is the Eiffel Tower?\n2. When was it built?",                    // questions
		"It is 330 meters including antennas.",                                       // answer to Q1
		"It was completed in 1889.",                                                  // answer to Q2
		"The Eiffel Tower is 330 meters tall including antennas, completed in 1889.", // revision
	}}
	cov := NewChainOfVerification(gw)

	result, err := cov.Verify(context.Background(), "How tall is the Eiffel Tower?")
	require.NoError(t, err)
	require.Len(t, result.Questions, 2)
	require.Equal(t, "How tall is the Eiffel Tower?", result.Questions[0])
	require.True(t, result.Revised)
}

func TestChainOfVerification_NoRevisionWhenFinalMatchesDraft(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		"Paris is the capital of France.",
		"1. What is the capital of France?",
		"Paris.",
		"Paris is the capital of France.",
	}}
	cov := NewChainOfVerification(gw)

	result, err := cov.Verify(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	require.False(t, result.Revised)
}

func TestGenerateQuestions_CapsAtThree(t *testing.T) {
	gw := &scriptedGateway{responses: []string{"1. one\n2. two\n3. three\n4. four\n5. five"}}
	cov := NewChainOfVerification(gw)

	questions, err := cov.generateQuestions(context.Background(), "q", "draft")
	require.NoError(t, err)
	require.Len(t, questions, 3)
}
