package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func classifyEven(ctx context.Context, expr string) Outcome {
	return Outcome{Prime: len(expr)%2 == 0, Detail: expr}
}

func TestSubmitRunsTaskAndReturnsOutcome(t *testing.T) {
	p := NewPool("test", classifyEven, 2, 8)
	p.Start()
	defer p.Close()

	out := p.Submit(context.Background(), "ab", Normal)
	require.NoError(t, out.Err)
	require.True(t, out.Prime)
}

func TestHighPriorityIsPreferredUnderLoad(t *testing.T) {
	var order []string
	var mu sync.Mutex
	block := make(chan struct{})

	fn := func(ctx context.Context, expr string) Outcome {
		<-block
		mu.Lock()
		order = append(order, expr)
		mu.Unlock()
		return Outcome{}
	}

	p := NewPool("prio", fn, 1, 8)
	p.Start()
	defer p.Close()

	go p.Submit(context.Background(), "first-occupies-worker", Normal)
	time.Sleep(20 * time.Millisecond) // let the single worker pick it up and block

	done := make(chan struct{})
	go func() { p.Submit(context.Background(), "low", Low); close(done) }()
	time.Sleep(10 * time.Millisecond)
	go p.Submit(context.Background(), "high", High)
	time.Sleep(10 * time.Millisecond)

	close(block)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first-occupies-worker", "high", "low"}, order)
}
