package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitCodeAndExplanation_FencedBlock(t *testing.T) {
	text := "```python\nprint('hi')\n```\nThis prints a greeting."
	code, explanation := splitCodeAndExplanation(text)
	require.Equal(t, "print('hi')", code)
	require.Equal(t, "This prints a greeting.", explanation)
}

func TestSplitCodeAndExplanation_NoFence(t *testing.T) {
	code, explanation := splitCodeAndExplanation("  print('hi')  ")
	require.Equal(t, "print('hi')", code)
	require.Empty(t, explanation)
}

func TestSplitCodeAndExplanation_UnterminatedFence(t *testing.T) {
	code, explanation := splitCodeAndExplanation("```python\nprint('hi')")
	require.Equal(t, "print('hi')", code)
	require.Empty(t, explanation)
}
