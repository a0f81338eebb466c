package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConcurrentQueueFIFOOrder(t *testing.T) {
	q := NewConcurrentQueue(10)
	q.Start()
	defer q.Stop()

	for i := 0; i < 5; i++ {
		q.ChanIn() <- i
	}

	for i := 0; i < 5; i++ {
		select {
		case item := <-q.ChanOut():
			require.Equal(t, i, item)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for item %d", i)
		}
	}
}

func TestConcurrentQueueDecouplesProducer(t *testing.T) {
	q := NewConcurrentQueue(0)
	q.Start()
	defer q.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.ChanIn() <- i
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked on a slow/absent consumer")
	}

	for i := 0; i < 100; i++ {
		select {
		case item := <-q.ChanOut():
			require.Equal(t, i, item)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for item %d", i)
		}
	}
}

func TestConcurrentQueueStopIsIdempotent(t *testing.T) {
	q := NewConcurrentQueue(1)
	q.Start()
	q.Stop()
	q.Stop()
}
