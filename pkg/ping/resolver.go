package ping

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// Resolver turns a hostname into a single IP address. The engine
// issues exactly one synchronous Resolve per AddHost; IP literals
// never reach the resolver.
type Resolver interface {
	Resolve(ctx context.Context, name string) (netip.Addr, error)
}

// StaticResolver resolves from a fixed map. Handy for tests and for
// callers that pre-resolve their target lists.
type StaticResolver map[string]netip.Addr

func (r StaticResolver) Resolve(_ context.Context, name string) (netip.Addr, error) {
	addr, ok := r[name]
	if !ok {
		return netip.Addr{}, fmt.Errorf("%w: %s", ErrResolutionFailed, name)
	}
	return addr, nil
}

// DNSResolver queries the system's configured nameservers directly,
// trying A then AAAA and returning the first address found.
type DNSResolver struct {
	servers []string
	client  *dns.Client
}

// NewDNSResolver reads the nameserver list from /etc/resolv.conf.
func NewDNSResolver() (*DNSResolver, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, fmt.Errorf("read resolver config: %w", err)
	}
	if len(conf.Servers) == 0 {
		return nil, fmt.Errorf("read resolver config: no nameservers")
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return &DNSResolver{
		servers: servers,
		client:  &dns.Client{Net: "udp", Timeout: 5 * time.Second},
	}, nil
}

func (r *DNSResolver) Resolve(ctx context.Context, name string) (netip.Addr, error) {
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addr, err := r.query(ctx, name, qtype)
		if err == nil {
			return addr, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s", ErrResolutionFailed, name)
}

func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) (netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
			continue
		}
		for _, rr := range resp.Answer {
			switch a := rr.(type) {
			case *dns.A:
				if addr, ok := netip.AddrFromSlice(a.A); ok {
					return addr.Unmap(), nil
				}
			case *dns.AAAA:
				if addr, ok := netip.AddrFromSlice(a.AAAA); ok {
					return addr, nil
				}
			}
		}
		lastErr = fmt.Errorf("no address records")
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no nameservers answered")
	}
	return netip.Addr{}, lastErr
}
