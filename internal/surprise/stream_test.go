package surprise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryMillis(t *testing.T) {
	ms, ok := entryMillis("1722500000000-0")
	require.True(t, ok)
	require.Equal(t, int64(1722500000000), ms)

	_, ok = entryMillis("not-an-id")
	require.False(t, ok)
	_, ok = entryMillis("12345")
	require.False(t, ok)
	_, ok = entryMillis("-0")
	require.False(t, ok)
}

func TestIDJustBefore(t *testing.T) {
	require.Equal(t, "1722500000000-4", idJustBefore("1722500000000-5"))
	require.Equal(t, "1722499999999-18446744073709551615", idJustBefore("1722500000000-0"))
	require.Equal(t, "0", idJustBefore("garbage"))
}

func TestDecodeTurn(t *testing.T) {
	turn, ok := decodeTurn(map[string]any{"turn": `{"message":"hi","session_id":"s1"}`})
	require.True(t, ok)
	require.Equal(t, "hi", turn.Message)
	require.Equal(t, "s1", turn.SessionID)

	_, ok = decodeTurn(map[string]any{"other": "x"})
	require.False(t, ok)
	_, ok = decodeTurn(map[string]any{"turn": "{broken"})
	require.False(t, ok)
}
