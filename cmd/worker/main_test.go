package main

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func waitServe(t *testing.T, ctx context.Context, runners []runner) error {
	t.Helper()
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, runners, srv, zap.NewNop()) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
		return nil
	}
}

func TestServeReturnsConsumerFailure(t *testing.T) {
	boom := errors.New("queue gone")
	var stopped bool
	err := waitServe(t, context.Background(), []runner{
		runnerFunc(func(context.Context) error { return boom }),
		runnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			stopped = true
			return nil
		}),
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, stopped)
}

func TestServeStopsCleanlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := waitServe(t, ctx, []runner{
		runnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}),
	})
	assert.NoError(t, err)
}
