package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStopsOnCancel(t *testing.T) {
	srv := New("127.0.0.1:0", http.NotFoundHandler())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, time.Second, logger) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunReportsListenErrors(t *testing.T) {
	srv := New("256.0.0.1:bad", http.NotFoundHandler())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := Run(context.Background(), srv, time.Second, logger)
	assert.Error(t, err)
}
