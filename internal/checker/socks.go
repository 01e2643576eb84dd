package checker

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
	"h12.io/socks"

	"github.com/August26/proxyscout/internal/model"
)

// socks5Dialer opens a TCP connection to target through the candidate acting
// as a SOCKS5 proxy. If we get a connection within the deadline the proxy
// works.
type socks5Dialer struct {
	target  string
	timeout time.Duration
}

func (d *socks5Dialer) Dial(ctx context.Context, c model.Candidate) error {
	dialer, err := proxy.SOCKS5("tcp", c.String(), nil, &net.Dialer{
		Timeout:   d.timeout,
		KeepAlive: -1,
	})
	if err != nil {
		return protocolError(err)
	}

	var conn net.Conn
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, "tcp", d.target)
	} else {
		conn, err = dialWithContext(ctx, func() (net.Conn, error) {
			return dialer.Dial("tcp", d.target)
		})
	}
	if err != nil {
		return classify(err)
	}
	return conn.Close()
}

// socks4Dialer is the SOCKS4 counterpart, built on h12.io/socks. Its dial func
// takes no context, so the attempt runs in its own goroutine.
type socks4Dialer struct {
	target  string
	timeout time.Duration
}

func (d *socks4Dialer) Dial(ctx context.Context, c model.Candidate) error {
	u := url.URL{Scheme: "socks4", Host: c.String()}
	if d.timeout > 0 {
		u.RawQuery = url.Values{"timeout": {d.timeout.String()}}.Encode()
	}
	dial := socks.Dial(u.String())

	conn, err := dialWithContext(ctx, func() (net.Conn, error) {
		return dial("tcp", d.target)
	})
	if err != nil {
		return classify(err)
	}
	return conn.Close()
}

// dialWithContext runs dial and gives up when ctx is done. A connection that
// arrives after that is closed in the background.
func dialWithContext(ctx context.Context, dial func() (net.Conn, error)) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := dial()
		done <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("dial: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.conn, nil
	}
}
