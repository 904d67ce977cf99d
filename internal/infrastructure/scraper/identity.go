package scraper

import (
	"net/http"
	"sync"
)

// Identity is a browser user agent with the headers that browser would send.
type Identity struct {
	UserAgent string
	Headers   http.Header
}

// Apply sets the identity on an outgoing request without overriding explicit headers.
func (i Identity) Apply(req *http.Request) {
	req.Header.Set("User-Agent", i.UserAgent)
	for key, vals := range i.Headers {
		if req.Header.Get(key) != "" {
			continue
		}
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}
}

// IdentityPool rotates through a fixed set of identities, one per request.
type IdentityPool struct {
	mu         sync.Mutex
	identities []Identity
	idx        int
}

// NewIdentityPool creates a pool with realistic desktop browsers.
func NewIdentityPool() *IdentityPool {
	return &IdentityPool{identities: defaultIdentities()}
}

// Next returns the next identity in round-robin order.
func (p *IdentityPool) Next() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.identities[p.idx%len(p.identities)]
	p.idx++
	return id
}

// Size is the number of identities in rotation.
func (p *IdentityPool) Size() int {
	return len(p.identities)
}

func defaultIdentities() []Identity {
	chrome := chromiumHeaders()
	firefox := firefoxHeaders()
	return []Identity{
		{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36", Headers: chrome},
		{UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36", Headers: chrome},
		{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0", Headers: firefox},
		{UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15", Headers: firefox},
		{UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36", Headers: chrome},
	}
}

func chromiumHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "pl-PL,pl;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Accept-Encoding", "gzip, br")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

func firefoxHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "pl,en-US;q=0.7,en;q=0.3")
	h.Set("Accept-Encoding", "gzip, br")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}
