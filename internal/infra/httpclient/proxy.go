package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"agentchat/internal/shared/logging"
)

const proxyModeEnv = "AGENTCHAT_PROXY_MODE"

const proxyDialTimeout = 300 * time.Millisecond

type proxyMode uint8

const (
	proxyModeAuto proxyMode = iota
	proxyModeStrict
	proxyModeDirect
)

// proxyResolver picks the proxy for outbound agent calls. Loopback targets
// (local webhook runners) never go through a proxy, and a loopback proxy that
// does not accept connections is skipped instead of failing every call.
type proxyResolver struct {
	mode     proxyMode
	fromEnv  func(*http.Request) (*url.URL, error)
	logger   logging.Logger
	bypassed sync.Map // proxy url -> bool, true when unreachable
	warned   sync.Map // proxy url -> struct{}
}

func newProxyResolver(logger logging.Logger) *proxyResolver {
	return &proxyResolver{
		mode:    parseProxyMode(os.Getenv(proxyModeEnv)),
		fromEnv: http.ProxyFromEnvironment,
		logger:  logging.OrNop(logger),
	}
}

func parseProxyMode(raw string) proxyMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return proxyModeStrict
	case "direct", "none", "off":
		return proxyModeDirect
	default:
		return proxyModeAuto
	}
}

func (p *proxyResolver) Proxy(req *http.Request) (*url.URL, error) {
	switch p.mode {
	case proxyModeDirect:
		return nil, nil
	case proxyModeStrict:
		return p.fromEnv(req)
	}

	if req == nil || req.URL == nil {
		return p.fromEnv(req)
	}
	if IsLoopbackHost(req.URL.Hostname()) {
		return nil, nil
	}

	proxyURL, err := p.fromEnv(req)
	if proxyURL == nil || err != nil {
		return proxyURL, err
	}
	if !IsLoopbackHost(proxyURL.Hostname()) {
		return proxyURL, nil
	}
	hostPort, ok := proxyHostPort(proxyURL)
	if !ok {
		return proxyURL, nil
	}

	key := proxyURL.String()
	if bypass, ok := p.bypassed.Load(key); ok {
		if bypass.(bool) {
			return nil, nil
		}
		return proxyURL, nil
	}
	if isProxyReachable(req.Context(), hostPort) {
		p.bypassed.Store(key, false)
		return proxyURL, nil
	}
	p.bypassed.Store(key, true)
	if _, loaded := p.warned.LoadOrStore(key, struct{}{}); !loaded {
		p.logger.Warn("Local proxy %s is unreachable; bypassing it for agent calls (set %s=strict to disable).", proxyURL.Redacted(), proxyModeEnv)
	}
	return nil, nil
}

// IsLoopbackHost reports whether host names the local machine.
func IsLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified()
}

func proxyHostPort(proxyURL *url.URL) (string, bool) {
	host := strings.TrimSpace(proxyURL.Hostname())
	if host == "" {
		return "", false
	}
	port := strings.TrimSpace(proxyURL.Port())
	if port == "" {
		switch strings.ToLower(proxyURL.Scheme) {
		case "", "http":
			port = "80"
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		default:
			return "", false
		}
	}
	return net.JoinHostPort(host, port), true
}

func isProxyReachable(ctx context.Context, hostPort string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	dialer := net.Dialer{Timeout: proxyDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
