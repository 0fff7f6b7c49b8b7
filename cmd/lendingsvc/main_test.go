package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoBackground_WaitJoinsWorkers(t *testing.T) {
	t.Parallel()

	var stopped atomic.Int32

	worker := func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		stopped.Add(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wait := goBackground(ctx, worker, worker)

	assert.Zero(t, stopped.Load())

	cancel()
	wait()

	assert.Equal(t, int32(2), stopped.Load(), "wait returned before the workers stopped")
}
