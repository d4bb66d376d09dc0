package chainclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

const nameResolverCacheTTL = 60 * time.Second

type nameResolverCacheEntry struct {
	value     string
	found     bool
	expiresAt time.Time
}

// NameResolverDNS resolves on-chain name-service policy records stored as
// DNS TXT records, with an in-process TTL cache so repeated lookups
// within the tick cadence do not hit the network every time.
type NameResolverDNS struct {
	server string
	client *dns.Client

	mu    sync.Mutex
	cache map[string]nameResolverCacheEntry
	nowFn func() time.Time
}

// NewNameResolverDNS constructs a DNS-backed NameResolver against the
// given resolver address (host:port).
func NewNameResolverDNS(server string) (*NameResolverDNS, error) {
	trimmed := strings.TrimSpace(server)
	if trimmed == "" {
		return nil, fmt.Errorf("chainclient: dns server required")
	}
	return &NameResolverDNS{
		server: trimmed,
		client: &dns.Client{Timeout: 5 * time.Second},
		cache:  make(map[string]nameResolverCacheEntry),
		nowFn:  time.Now,
	}, nil
}

// ResolveTextRecord looks up key=value inside the TXT records for name,
// returning found=false if no matching record exists.
func (n *NameResolverDNS) ResolveTextRecord(ctx context.Context, name, key string) (string, bool, error) {
	cacheKey := name + "\x00" + key
	n.mu.Lock()
	if entry, ok := n.cache[cacheKey]; ok && n.nowFn().Before(entry.expiresAt) {
		n.mu.Unlock()
		return entry.value, entry.found, nil
	}
	n.mu.Unlock()

	fqdn := dns.Fqdn(name)
	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, dns.TypeTXT)
	msg.RecursionDesired = true

	resp, _, err := n.client.ExchangeContext(ctx, msg, n.server)
	if err != nil {
		return "", false, fmt.Errorf("chainclient: dns txt lookup: %w", err)
	}
	if resp == nil || resp.Rcode != dns.RcodeSuccess {
		n.store(cacheKey, "", false)
		return "", false, nil
	}

	prefix := key + "="
	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for _, segment := range txt.Txt {
			if strings.HasPrefix(segment, prefix) {
				value := strings.TrimPrefix(segment, prefix)
				n.store(cacheKey, value, true)
				return value, true, nil
			}
		}
	}
	n.store(cacheKey, "", false)
	return "", false, nil
}

func (n *NameResolverDNS) store(cacheKey, value string, found bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cache[cacheKey] = nameResolverCacheEntry{value: value, found: found, expiresAt: n.nowFn().Add(nameResolverCacheTTL)}
}

var _ NameResolver = (*NameResolverDNS)(nil)
