package apperr

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleAndBoxed(t *testing.T) {
	e := New(CategoryModel, "backend unavailable").WithRecovery("retry the request", "check backend health")
	require.Equal(t, "[model] backend unavailable", e.Simple())

	boxed := e.Boxed()
	require.True(t, strings.HasPrefix(boxed, "+"))
	require.Contains(t, boxed, "backend unavailable")
	require.Contains(t, boxed, "Recovery 1: retry the request")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	e := Wrap(CategoryNetwork, "could not reach backend", cause)
	require.ErrorIs(t, e, cause)
	require.Contains(t, e.Error(), "connection refused")
}

func TestFromError_UnknownCategoryForPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	e := FromError(plain)
	require.Equal(t, CategoryUnknown, e.Category)
}

func TestFromError_PassesThroughTypedErrors(t *testing.T) {
	typed := New(CategoryValidation, "missing field")
	e := FromError(typed)
	require.Same(t, typed, e)
}
