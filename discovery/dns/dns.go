// Package dns provides DNS-backed Discovery sources: plain A-record
// resolution with a caller-supplied port, and SRV-record resolution that
// follows the CNAME target to its address and carries the SRV record's own
// port, weight, and priority onto the resulting Backend.
package dns

import (
	"context"
	"time"

	"github.com/miekg/dns"

	"github.com/radishllc/ballast"
)

// DefaultResolver is used when no Resolver address is configured.
const DefaultResolver = "127.0.0.1:53"

// ARecords resolves a hostname's A records on every Snapshot call. Each
// resulting address becomes one Backend at the caller-supplied port.
type ARecords struct {
	Hostname string
	Port     uint16
	Resolver string
	client   *dns.Client
}

// NewARecords constructs an ARecords source. resolver may be empty, in
// which case DefaultResolver is used.
func NewARecords(hostname string, port uint16, resolver string) *ARecords {
	if resolver == "" {
		resolver = DefaultResolver
	}
	return &ARecords{Hostname: hostname, Port: port, Resolver: resolver, client: new(dns.Client)}
}

// Snapshot implements ballast.Discovery.
func (a *ARecords) Snapshot(ctx context.Context) ([]*ballast.Backend, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(a.Hostname), dns.TypeA)

	reply, _, err := a.client.ExchangeContext(ctx, msg, a.Resolver)
	if err != nil {
		return nil, ballast.NewDiscoveryErrorf("dns: A lookup for %q failed: %v", a.Hostname, err)
	}

	backends := make([]*ballast.Backend, 0, len(reply.Answer))
	for _, rr := range reply.Answer {
		record, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		backends = append(backends, ballast.NewBackend(record.A.String(), a.Port,
			ttlOf(record.Hdr)))
	}
	return backends, nil
}

// SRVRecords resolves SRV records for service, following each record's
// Target CNAME to an address via an additional A lookup, and carries the
// SRV record's own port, weight, and priority onto the resulting Backend.
type SRVRecords struct {
	Service  string
	Resolver string
	client   *dns.Client
}

// NewSRVRecords constructs a SRVRecords source. resolver may be empty, in
// which case DefaultResolver is used.
func NewSRVRecords(service, resolver string) *SRVRecords {
	if resolver == "" {
		resolver = DefaultResolver
	}
	return &SRVRecords{Service: service, Resolver: resolver, client: new(dns.Client)}
}

// Snapshot implements ballast.Discovery.
func (s *SRVRecords) Snapshot(ctx context.Context) ([]*ballast.Backend, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(s.Service), dns.TypeSRV)

	reply, _, err := s.client.ExchangeContext(ctx, msg, s.Resolver)
	if err != nil {
		return nil, ballast.NewDiscoveryErrorf("dns: SRV lookup for %q failed: %v", s.Service, err)
	}

	// A records for SRV targets typically arrive in the additional section
	// alongside the SRV answers; index them so we don't issue one A lookup
	// per SRV record.
	addrByTarget := make(map[string]string)
	for _, rr := range reply.Extra {
		if a, ok := rr.(*dns.A); ok {
			addrByTarget[a.Hdr.Name] = a.A.String()
		}
	}

	backends := make([]*ballast.Backend, 0, len(reply.Answer))
	for _, rr := range reply.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}

		address, ok := addrByTarget[srv.Target]
		if !ok {
			address, err = s.resolveTarget(ctx, srv.Target)
			if err != nil {
				return nil, err
			}
		}

		backends = append(backends, ballast.NewBackend(address, srv.Port,
			ballast.WithPriority(int(srv.Priority)),
			ballast.WithWeight(int(srv.Weight)),
			ttlOf(srv.Hdr)))
	}
	return backends, nil
}

func (s *SRVRecords) resolveTarget(ctx context.Context, target string) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(target, dns.TypeA)

	reply, _, err := s.client.ExchangeContext(ctx, msg, s.Resolver)
	if err != nil {
		return "", ballast.NewDiscoveryErrorf("dns: A lookup for SRV target %q failed: %v", target, err)
	}
	for _, rr := range reply.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", ballast.NewDiscoveryErrorf("dns: no A record found for SRV target %q", target)
}

func ttlOf(hdr dns.RR_Header) ballast.BackendOption {
	return ballast.WithTTL(time.Duration(hdr.Ttl) * time.Second)
}
