package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumTokensTotal(t *testing.T) {
	exposition := `# HELP llamacpp_prompt_tokens_total Number of prompt tokens processed.
# TYPE llamacpp_prompt_tokens_total counter
llamacpp_prompt_tokens_total 1200
llamacpp_tokens_predicted_total{slot="0"} 300
llamacpp_tokens_predicted_total{slot="1"} 500
llamacpp_requests_total 42
http_requests_total{code="200"} 9000
`
	require.Equal(t, 1200.0, sumTokensTotal(exposition))
}

func TestSumTokensTotal_EmptyAndMalformed(t *testing.T) {
	require.Equal(t, 0.0, sumTokensTotal(""))
	require.Equal(t, 0.0, sumTokensTotal("# only comments\n\nnot_a_metric\n"))
	require.Equal(t, 0.0, sumTokensTotal("some_tokens_total notanumber\n"))
}
