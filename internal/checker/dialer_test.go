package checker

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/armon/go-socks5"
	"github.com/elazarl/goproxy"

	"github.com/August26/proxyscout/internal/model"
)

func candidateFor(t *testing.T, addr string, p model.Protocol) model.Candidate {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return model.Candidate{Host: host, Port: port, Protocol: p}
}

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// silentServer accepts connections and never answers.
func silentServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				io.Copy(io.Discard, conn)
				conn.Close()
			}()
		}
	}()
	return ln.Addr().String()
}

// tcpTarget is the probe target SOCKS dialers connect to.
func tcpTarget(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln.Addr().String()
}

// socks4Server answers every request with the given SOCKS4 reply code.
func socks4Server(t *testing.T, code byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				// VN CD DSTPORT DSTIP
				head := make([]byte, 8)
				if _, err := io.ReadFull(conn, head); err != nil {
					return
				}
				// USERID, NUL terminated
				b := make([]byte, 1)
				for {
					if _, err := conn.Read(b); err != nil || b[0] == 0 {
						break
					}
				}
				conn.Write([]byte{0x00, code, head[2], head[3], head[4], head[5], head[6], head[7]})
				time.Sleep(50 * time.Millisecond)
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func mustDialer(t *testing.T, p model.Protocol, opts DialOptions) Dialer {
	t.Helper()
	d, err := NewDialer(p, opts)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func timeoutCtx(t *testing.T, d time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func wantKind(t *testing.T, err error, kind model.ErrKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var de *DialError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DialError, got %T: %v", err, err)
	}
	if de.Kind != kind {
		t.Fatalf("got kind %s want %s (%v)", de.Kind, kind, err)
	}
}

func TestNewDialer_Unknown(t *testing.T) {
	if _, err := NewDialer("ftp", DialOptions{}); err == nil {
		t.Fatalf("expected error for unknown protocol")
	}
}

func TestHTTPDialer_Working(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin":"127.0.0.1"}`))
	}))
	defer target.Close()
	proxySrv := httptest.NewServer(goproxy.NewProxyHttpServer())
	defer proxySrv.Close()

	d := mustDialer(t, model.ProtocolHTTP, DialOptions{ProbeURL: target.URL, Timeout: time.Second})
	c := candidateFor(t, proxySrv.Listener.Addr().String(), model.ProtocolHTTP)
	if err := d.Dial(timeoutCtx(t, 2*time.Second), c); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestHTTPDialer_BadStatus(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer target.Close()
	proxySrv := httptest.NewServer(goproxy.NewProxyHttpServer())
	defer proxySrv.Close()

	d := mustDialer(t, model.ProtocolHTTP, DialOptions{ProbeURL: target.URL, Timeout: time.Second})
	c := candidateFor(t, proxySrv.Listener.Addr().String(), model.ProtocolHTTP)
	wantKind(t, d.Dial(timeoutCtx(t, 2*time.Second), c), model.KindProtocol)
}

func TestHTTPDialer_Refused(t *testing.T) {
	d := mustDialer(t, model.ProtocolHTTP, DialOptions{ProbeURL: "http://example.invalid/", Timeout: time.Second})
	c := candidateFor(t, closedAddr(t), model.ProtocolHTTP)
	wantKind(t, d.Dial(timeoutCtx(t, 2*time.Second), c), model.KindConnectionRefused)
}

func TestHTTPDialer_Timeout(t *testing.T) {
	d := mustDialer(t, model.ProtocolHTTP, DialOptions{ProbeURL: "http://example.invalid/", Timeout: 5 * time.Second})
	c := candidateFor(t, silentServer(t), model.ProtocolHTTP)

	start := time.Now()
	wantKind(t, d.Dial(timeoutCtx(t, 150*time.Millisecond), c), model.KindTimeout)
	if time.Since(start) > 2*time.Second {
		t.Fatalf("dial ignored the context deadline")
	}
}

func TestSOCKS5Dialer_Working(t *testing.T) {
	srv, err := socks5.New(&socks5.Config{})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go srv.Serve(ln)

	d := mustDialer(t, model.ProtocolSOCKS5, DialOptions{ProbeAddr: tcpTarget(t), Timeout: time.Second})
	c := candidateFor(t, ln.Addr().String(), model.ProtocolSOCKS5)
	if err := d.Dial(timeoutCtx(t, 2*time.Second), c); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestSOCKS5Dialer_Refused(t *testing.T) {
	d := mustDialer(t, model.ProtocolSOCKS5, DialOptions{ProbeAddr: "127.0.0.1:80", Timeout: time.Second})
	c := candidateFor(t, closedAddr(t), model.ProtocolSOCKS5)
	wantKind(t, d.Dial(timeoutCtx(t, 2*time.Second), c), model.KindConnectionRefused)
}

func TestSOCKS5Dialer_Timeout(t *testing.T) {
	d := mustDialer(t, model.ProtocolSOCKS5, DialOptions{ProbeAddr: "127.0.0.1:80", Timeout: 5 * time.Second})
	c := candidateFor(t, silentServer(t), model.ProtocolSOCKS5)
	wantKind(t, d.Dial(timeoutCtx(t, 150*time.Millisecond), c), model.KindTimeout)
}

func TestSOCKS4Dialer_Working(t *testing.T) {
	d := mustDialer(t, model.ProtocolSOCKS4, DialOptions{ProbeAddr: tcpTarget(t), Timeout: time.Second})
	c := candidateFor(t, socks4Server(t, 0x5a), model.ProtocolSOCKS4)
	if err := d.Dial(timeoutCtx(t, 2*time.Second), c); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestSOCKS4Dialer_Rejected(t *testing.T) {
	d := mustDialer(t, model.ProtocolSOCKS4, DialOptions{ProbeAddr: tcpTarget(t), Timeout: time.Second})
	c := candidateFor(t, socks4Server(t, 0x5b), model.ProtocolSOCKS4)
	err := d.Dial(timeoutCtx(t, 2*time.Second), c)
	if err == nil {
		t.Fatalf("expected error for rejected request")
	}
}

func TestSOCKS4Dialer_Timeout(t *testing.T) {
	d := mustDialer(t, model.ProtocolSOCKS4, DialOptions{ProbeAddr: "127.0.0.1:80", Timeout: 5 * time.Second})
	c := candidateFor(t, silentServer(t), model.ProtocolSOCKS4)

	start := time.Now()
	wantKind(t, d.Dial(timeoutCtx(t, 150*time.Millisecond), c), model.KindTimeout)
	if time.Since(start) > 2*time.Second {
		t.Fatalf("dial ignored the context deadline")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want model.ErrKind
	}{
		{context.DeadlineExceeded, model.KindTimeout},
		{context.Canceled, model.KindCancelled},
		{&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}, model.KindConnectionRefused},
		{errors.New("read: i/o timeout"), model.KindTimeout},
		{errors.New("socks4 request rejected"), model.KindProtocol},
		{&DialError{Kind: model.KindProtocol, Err: errors.New("x")}, model.KindProtocol},
	}
	for _, tc := range cases {
		if got := classify(tc.err).Kind; got != tc.want {
			t.Fatalf("classify(%v) = %s want %s", tc.err, got, tc.want)
		}
	}
}
