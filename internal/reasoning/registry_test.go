package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name string
	desc string
	fn   func(ctx context.Context, input string) (string, error)
}

func (s *stubTool) Name() string     { return s.name }
func (s *stubTool) Describe() string { return s.desc }
func (s *stubTool) Execute(ctx context.Context, input string) (string, error) {
	return s.fn(ctx, input)
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	tool := &stubTool{name: "echo", desc: "echoes input"}
	require.NoError(t, r.Register(tool))
	err := r.Register(&stubTool{name: "echo", desc: "a different echo"})
	require.Error(t, err)
}

func TestRegistry_GetAndDescribe(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubTool{name: "b", desc: "tool b"}))
	require.NoError(t, r.Register(&stubTool{name: "a", desc: "tool a"}))

	tool, ok := r.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", tool.Name())

	_, ok = r.Get("missing")
	require.False(t, ok)

	require.Equal(t, []string{"a", "b"}, r.Names())
	require.Equal(t, "- a: tool a\n- b: tool b\n", r.Describe())
}
