package generator_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropserve/service/internal/generator"
)

func TestRandom(t *testing.T) {
	id, err := generator.Random(12)
	require.NoError(t, err)
	require.Len(t, id, 12)

	for _, r := range id {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		require.True(t, ok, "unexpected character %q", r)
	}

	// Zero length falls back to a sane default instead of an empty id.
	id, err = generator.Random(0)
	require.NoError(t, err)
	require.Len(t, id, 8)
}

func TestTimestamp(t *testing.T) {
	id, err := generator.Timestamp(0)
	require.NoError(t, err)

	_, err = strconv.ParseInt(id, 10, 64)
	require.NoError(t, err)
}

func TestByName(t *testing.T) {
	id, err := generator.ByName("uuid")(0)
	require.NoError(t, err)
	require.Equal(t, 4, strings.Count(id, "-"))

	// Unknown strategies fall back to random.
	id, err = generator.ByName("zero-width")(6)
	require.NoError(t, err)
	require.Len(t, id, 6)
}
