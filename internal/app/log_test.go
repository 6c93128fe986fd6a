package app

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMemoryLog(t *testing.T) {
	m := newMemoryLog(4)
	for i := 0; i < 6; i++ {
		_, err := m.Write([]byte{byte('0' + i), '\n'})
		require.NoError(t, err)
	}

	var b bytes.Buffer
	_, err := m.WriteTo(&b)
	require.NoError(t, err)
	require.Equal(t, "2\n3\n4\n5\n", b.String()) // only the last four lines survive

	m.Reset()
	b.Reset()
	_, err = m.WriteTo(&b)
	require.NoError(t, err)
	require.Empty(t, b.String())
}

func TestGetLogger(t *testing.T) {
	var b bytes.Buffer
	Logger = zerolog.New(&b)

	modules["quiet"] = "warn"
	t.Cleanup(func() { delete(modules, "quiet") })

	log := GetLogger("quiet")
	log.Info().Msg("hidden")
	log.Warn().Msg("visible")

	require.NotContains(t, b.String(), "hidden")
	require.Contains(t, b.String(), "visible")

	// unknown module falls back to the app logger
	fallback := GetLogger("unknown")
	fallback.Info().Msg("fallback")
	require.Contains(t, b.String(), "fallback")
}
