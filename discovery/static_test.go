package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/radishllc/ballast"
)

func TestNew_StringEntryDefaultsPort(t *testing.T) {
	s, err := New("example.test")
	require.NoError(t, err)

	snapshot, err := s.Snapshot(t.Context())
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	require.Equal(t, "example.test", snapshot[0].Address)
	require.Equal(t, uint16(DefaultPort), snapshot[0].Port)
}

func TestNew_StringEntryExplicitPort(t *testing.T) {
	s, err := New("example.test:9090")
	require.NoError(t, err)

	snapshot, err := s.Snapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, uint16(9090), snapshot[0].Port)
}

func TestNew_BackendEntryPassesThrough(t *testing.T) {
	b := ballast.NewBackend("10.0.0.9", 1234)
	s, err := New(b)
	require.NoError(t, err)

	snapshot, err := s.Snapshot(t.Context())
	require.NoError(t, err)
	require.Same(t, b, snapshot[0])
}

func TestNew_RejectsInvalidPort(t *testing.T) {
	_, err := New("example.test:notaport")
	require.Error(t, err)
	var cfgErr *ballast.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNew_RejectsNonBackendNonStringEntry(t *testing.T) {
	_, err := New(42)
	require.Error(t, err)
}

func TestSnapshot_ReturnsDefensiveCopy(t *testing.T) {
	s, err := New("example.test")
	require.NoError(t, err)

	first, err := s.Snapshot(t.Context())
	require.NoError(t, err)
	first[0] = ballast.NewBackend("mutated", 1)

	second, err := s.Snapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, "example.test", second[0].Address)
}
