package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestNormalizeAddr(t *testing.T) {
	cases := []struct {
		port string
		want string
	}{
		{"8080", ":8080"},
		{":8080", ":8080"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeAddr(tc.port); got != tc.want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", tc.port, got, tc.want)
		}
	}
}

func TestShutdown_BeforeRunIsNoop(t *testing.T) {
	srv := &Server{}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown without run: %v", err)
	}
}

func TestRun_ReturnsErrServerClosedAfterShutdown(t *testing.T) {
	srv := &Server{}

	runErr := make(chan error, 1)
	go func() {
		// Port 0 binds an ephemeral port so parallel test runs don't collide.
		runErr <- srv.Run("0", http.NotFoundHandler())
	}()

	// Wait for Run to install the underlying server before shutting down.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		started := srv.httpServer != nil
		srv.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case err := <-runErr:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("run returned %v, want ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after shutdown")
	}
}
