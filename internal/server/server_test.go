package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"newsletter/internal/logging"
)

func TestNew_ClosedListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close()

	if _, err := New(ln, Config{Store: &fakeStore{}, Logger: logging.Discard()}); !errors.Is(err, ErrListenerUnusable) {
		t.Fatalf("expected ErrListenerUnusable, got %v", err)
	}
}

func TestNew_NilListener(t *testing.T) {
	if _, err := New(nil, Config{Store: &fakeStore{}}); !errors.Is(err, ErrListenerUnusable) {
		t.Fatalf("expected ErrListenerUnusable, got %v", err)
	}
}

func TestNew_NilStore(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	if _, err := New(ln, Config{}); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv, err := New(ln, Config{Store: &fakeStore{}, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	resp, err := http.Get("http://" + srv.Addr().String() + "/health_check")
	if err != nil {
		t.Fatalf("GET /health_check: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if len(body) != 0 {
		t.Errorf("expected empty body, got %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, err := http.Get("http://" + srv.Addr().String() + "/health_check"); err == nil {
		t.Error("server still accepting after shutdown")
	}
}
