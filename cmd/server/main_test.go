package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/qconnect/qconnect/internal/realtime"
	"github.com/qconnect/qconnect/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeDrainsInFlightRequestsOnSignal(t *testing.T) {
	logger := testutil.Logger()
	hub := realtime.NewHub("quiz_room", nil, logger)
	player := hub.Register(0)

	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-time.After(300 * time.Millisecond):
			_, _ = io.WriteString(w, "completed")
		case <-r.Context().Done():
			_, _ = io.WriteString(w, "cancelled")
		}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}
	srv.RegisterOnShutdown(hub.CloseAll)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- serve(ctx, srv, ln, 5*time.Second, logger) }()

	type result struct {
		body string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			resCh <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		resCh <- result{body: string(b), err: err}
	}()

	<-started
	time.Sleep(50 * time.Millisecond)
	cancel()

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, "completed", res.body)
	require.NoError(t, <-served)

	require.Eventually(t, func() bool {
		select {
		case <-player.Done():
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, player.Reason(), realtime.ErrHubClosed)
}
