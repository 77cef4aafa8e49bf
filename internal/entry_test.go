package internal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestWaitForShutdown_SignalCancelsRunContext(t *testing.T) {
	runCtx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	quit <- syscall.SIGTERM

	srv := &http.Server{Addr: "127.0.0.1:0"}
	if err := waitForShutdown(context.Background(), quit, srv, cancel, discardLogger()); err != nil {
		t.Fatalf("waitForShutdown: %v", err)
	}

	select {
	case <-runCtx.Done():
	default:
		t.Error("run context still live after shutdown")
	}
}

func TestWaitForShutdown_GroupContextCancelsRunContext(t *testing.T) {
	runCtx, cancel := context.WithCancel(context.Background())
	gCtx, gCancel := context.WithCancel(context.Background())
	gCancel()

	srv := &http.Server{Addr: "127.0.0.1:0"}
	if err := waitForShutdown(gCtx, make(chan os.Signal), srv, cancel, discardLogger()); err != nil {
		t.Fatalf("waitForShutdown: %v", err)
	}

	select {
	case <-runCtx.Done():
	default:
		t.Error("run context still live after shutdown")
	}
}
