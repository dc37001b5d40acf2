package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sidekick-sh/sidekick/internal/config"
)

func TestTCPProbeReachableEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
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

	prober := newTCPProber(ln.Addr().String())
	if err := prober.Probe(context.Background()); err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
}

func TestTCPProbeClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	prober := newTCPProber(addr)
	if err := prober.Probe(context.Background()); err == nil {
		t.Fatalf("expected probe to fail against closed port")
	}
}

type recordingConn struct {
	net.Conn
	closed bool
}

func (c *recordingConn) Close() error {
	c.closed = true
	return nil
}

func TestTCPProbeClosesConnection(t *testing.T) {
	conn := &recordingConn{}
	prober := newTCPProber("127.0.0.1:3000")
	prober.dialer = func(ctx context.Context, network, address string) (net.Conn, error) {
		return conn, nil
	}

	if err := prober.Probe(context.Background()); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !conn.closed {
		t.Fatalf("expected probe to close the test connection")
	}
}

func TestTCPProbeDialError(t *testing.T) {
	dialErr := errors.New("connection refused")
	prober := newTCPProber("127.0.0.1:3000")
	prober.dialer = func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, dialErr
	}

	err := prober.Probe(context.Background())
	if !errors.Is(err, dialErr) {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestHTTPProbeStatusHandling(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	prober := newHTTPProber(server.URL, nil)
	if err := prober.Probe(context.Background()); err != nil {
		t.Fatalf("expected 200 to pass, got %v", err)
	}

	status = http.StatusServiceUnavailable
	if err := prober.Probe(context.Background()); err == nil {
		t.Fatalf("expected 503 to fail")
	}

	expecting := newHTTPProber(server.URL, []int{http.StatusServiceUnavailable})
	if err := expecting.Probe(context.Background()); err != nil {
		t.Fatalf("expected 503 to pass with explicit expectStatus, got %v", err)
	}
}

func TestNewSelectsProberKind(t *testing.T) {
	spec := &config.BackendSpec{
		Endpoint: "127.0.0.1:3000",
		Probe:    config.ProbeSpec{Kind: config.ProbeKindTCP},
	}
	prober, err := New(spec)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := prober.(*tcpProber); !ok {
		t.Fatalf("expected tcp prober, got %T", prober)
	}

	spec.Probe = config.ProbeSpec{Kind: config.ProbeKindHTTP, URL: "http://127.0.0.1:3000/"}
	prober, err = New(spec)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := prober.(*httpProber); !ok {
		t.Fatalf("expected http prober, got %T", prober)
	}

	spec.Probe = config.ProbeSpec{Kind: "carrier-pigeon"}
	if _, err := New(spec); err == nil {
		t.Fatalf("expected error for unknown probe kind")
	}
}

func TestIsRunning(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
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

	live := newTCPProber(ln.Addr().String())
	if !IsRunning(context.Background(), live, time.Second) {
		t.Fatalf("expected IsRunning to report true with listener bound")
	}

	dead, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	deadAddr := dead.Addr().String()
	dead.Close()

	if IsRunning(context.Background(), newTCPProber(deadAddr), time.Second) {
		t.Fatalf("expected IsRunning to report false with no listener")
	}

	if IsRunning(context.Background(), nil, time.Second) {
		t.Fatalf("expected IsRunning to report false for nil prober")
	}
}
