package httpclient

import (
	"net/http"
	"time"

	"agentchat/internal/shared/logging"
)

const defaultTimeout = 60 * time.Second

// New returns an http.Client configured for outbound agent calls.
//
// It respects HTTP(S)_PROXY/ALL_PROXY/NO_PROXY, except that loopback targets
// are always dialed directly and unreachable loopback proxies are bypassed.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: Transport(logger),
	}
}

// Transport returns an http.Transport clone with the outbound proxy policy.
func Transport(logger logging.Logger) *http.Transport {
	resolver := newProxyResolver(logger)
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{Proxy: resolver.Proxy}
	}
	transport := base.Clone()
	transport.Proxy = resolver.Proxy
	return transport
}
