// Package consul provides a Discovery source backed by the Consul catalog,
// ported from balast's ConsulRestRecordList but built on
// github.com/hashicorp/consul/api instead of hand-rolled REST calls.
package consul

import (
	"context"
	"time"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/radishllc/ballast"
)

// DefaultTTL matches the original ConsulRestRecordList's hardcoded ttl=10.
const DefaultTTL = 10

// Catalog resolves a Consul service name to Backends on every Snapshot
// call via Catalog().Service. Dc, Near, and Tag are forwarded as Consul
// query options when set.
type Catalog struct {
	Service string
	Tag     string
	Dc      string
	Near    string

	client *consulapi.Client
}

// New constructs a Catalog discovery source using cfg, or
// consulapi.DefaultConfig() if cfg is nil.
func New(service string, cfg *consulapi.Config) (*Catalog, error) {
	if cfg == nil {
		cfg = consulapi.DefaultConfig()
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, ballast.NewConfigurationErrorf("consul: failed to build client: %v", err)
	}
	return &Catalog{Service: service, client: client}, nil
}

// WithTag restricts the catalog lookup to services carrying tag.
func (c *Catalog) WithTag(tag string) *Catalog { c.Tag = tag; return c }

// WithDc restricts the catalog lookup to datacenter dc.
func (c *Catalog) WithDc(dc string) *Catalog { c.Dc = dc; return c }

// WithNear sorts the catalog lookup by proximity to node near.
func (c *Catalog) WithNear(near string) *Catalog { c.Near = near; return c }

// Snapshot implements ballast.Discovery.
func (c *Catalog) Snapshot(ctx context.Context) ([]*ballast.Backend, error) {
	opts := (&consulapi.QueryOptions{Datacenter: c.Dc, Near: c.Near}).WithContext(ctx)

	entries, _, err := c.client.Catalog().Service(c.Service, c.Tag, opts)
	if err != nil {
		return nil, ballast.NewDiscoveryErrorf("consul: catalog lookup for %q failed: %v", c.Service, err)
	}

	backends := make([]*ballast.Backend, 0, len(entries))
	for _, entry := range entries {
		address := entry.ServiceAddress
		if address == "" {
			address = entry.Address
		}
		backends = append(backends, ballast.NewBackend(
			address,
			uint16(entry.ServicePort),
			ballast.WithTTL(DefaultTTL*time.Second),
		))
	}
	return backends, nil
}
