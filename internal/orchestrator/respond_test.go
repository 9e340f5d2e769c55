package orchestrator

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/apperr"
)

func TestStatusFromCategory(t *testing.T) {
	cases := map[apperr.Category]int{
		apperr.CategoryValidation:    http.StatusBadRequest,
		apperr.CategoryPermission:    http.StatusForbidden,
		apperr.CategoryResource:      http.StatusServiceUnavailable,
		apperr.CategoryModel:         http.StatusServiceUnavailable,
		apperr.CategoryNetwork:       http.StatusServiceUnavailable,
		apperr.CategoryConfiguration: http.StatusInternalServerError,
	}
	for cat, want := range cases {
		require.Equal(t, want, statusFromCategory(cat), "category %s", cat)
	}
}

func TestClientAddr_PrefersForwardedFor(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	r.RemoteAddr = "10.0.0.1:5555"
	require.Equal(t, "10.0.0.1:5555", clientAddr(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	require.Equal(t, "203.0.113.7", clientAddr(r))
}
