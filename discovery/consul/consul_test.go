package consul

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/require"

	"github.com/radishllc/ballast"
)

func TestCatalog_Snapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/catalog/service/widgets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"Address": "127.1.1.1", "ServicePort": 3000},
		})
	}))
	defer server.Close()

	catalog, err := New("widgets", &consulapi.Config{Address: server.URL})
	require.NoError(t, err)

	backends, err := catalog.Snapshot(t.Context())
	require.NoError(t, err)
	require.Len(t, backends, 1)
	require.Equal(t, "127.1.1.1", backends[0].Address)
	require.Equal(t, uint16(3000), backends[0].Port)
	require.Equal(t, DefaultTTL, int(backends[0].TTL.Seconds()))
}

func TestCatalog_SnapshotReturnsDiscoveryErrorOnLookupFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	catalog, err := New("widgets", &consulapi.Config{Address: server.URL})
	require.NoError(t, err)

	_, err = catalog.Snapshot(t.Context())
	require.Error(t, err)
	var discErr *ballast.DiscoveryError
	require.ErrorAs(t, err, &discErr)
}

func TestCatalog_ForwardsTagDcNear(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer server.Close()

	catalog, err := New("widgets", &consulapi.Config{Address: server.URL})
	require.NoError(t, err)
	catalog.WithTag("canary").WithDc("dc1").WithNear("node-1")

	_, err = catalog.Snapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"canary"}, gotQuery["tag"])
	require.Equal(t, []string{"dc1"}, gotQuery["dc"])
	require.Equal(t, []string{"node-1"}, gotQuery["near"])
}
