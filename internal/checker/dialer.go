package checker

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/August26/proxyscout/internal/model"
)

const (
	DefaultProbeURL  = "https://httpbin.org/ip"
	DefaultProbeAddr = "httpbin.org:80"
)

// Dialer performs one connection attempt through a candidate. The attempt is
// bounded by the deadline of ctx. Dialers never retry.
type Dialer interface {
	Dial(ctx context.Context, c model.Candidate) error
}

// DialOptions configures the probe targets shared by all dialers.
type DialOptions struct {
	ProbeURL  string        // fetched through HTTP proxies
	ProbeAddr string        // host:port connected to through SOCKS proxies
	Timeout   time.Duration // transport level cap, the context still dominates
}

// NewDialer returns the dialer for protocol p.
func NewDialer(p model.Protocol, opts DialOptions) (Dialer, error) {
	if opts.ProbeURL == "" {
		opts.ProbeURL = DefaultProbeURL
	}
	if opts.ProbeAddr == "" {
		opts.ProbeAddr = DefaultProbeAddr
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCheckTimeout
	}

	switch p {
	case model.ProtocolHTTP:
		return &httpDialer{probeURL: opts.ProbeURL, timeout: opts.Timeout}, nil
	case model.ProtocolSOCKS4:
		return &socks4Dialer{target: opts.ProbeAddr, timeout: opts.Timeout}, nil
	case model.ProtocolSOCKS5:
		return &socks5Dialer{target: opts.ProbeAddr, timeout: opts.Timeout}, nil
	default:
		return nil, fmt.Errorf("no dialer for proxy type %q", p)
	}
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, c model.Candidate) error

func (f DialerFunc) Dial(ctx context.Context, c model.Candidate) error {
	return f(ctx, c)
}

// httpDialer issues a GET for probeURL using the candidate as HTTP proxy.
// Only a 200 counts as working.
type httpDialer struct {
	probeURL string
	timeout  time.Duration
}

func (d *httpDialer) Dial(ctx context.Context, c model.Candidate) error {
	u := &url.URL{
		Scheme: "http",
		Host:   c.String(),
	}

	transport := &http.Transport{
		Proxy: http.ProxyURL(u),
		DialContext: (&net.Dialer{
			Timeout: d.timeout,
		}).DialContext,
		TLSHandshakeTimeout:   d.timeout,
		ResponseHeaderTimeout: d.timeout,
		DisableKeepAlives:     true,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.probeURL, nil)
	if err != nil {
		return protocolError(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return protocolError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
