package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New()

	require.NoError(t, q.Enqueue(Command{ID: "1", AgentID: "agent-a", Type: CommandRunContainer}))
	require.NoError(t, q.Enqueue(Command{ID: "2", AgentID: "agent-a", Type: CommandRunContainer}))

	cmd, ok := q.Dequeue("agent-a")
	require.True(t, ok)
	assert.Equal(t, "1", cmd.ID)

	cmd, ok = q.Dequeue("agent-a")
	require.True(t, ok)
	assert.Equal(t, "2", cmd.ID)

	_, ok = q.Dequeue("agent-a")
	assert.False(t, ok)
}

func TestQueuesAreIndependentPerAgent(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(Command{ID: "1", AgentID: "agent-a"}))

	_, ok := q.Dequeue("agent-b")
	assert.False(t, ok, "agent-b's queue must be empty despite agent-a having a command")
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	q := NewWithCapacity(2)
	require.NoError(t, q.Enqueue(Command{ID: "1", AgentID: "a"}))
	require.NoError(t, q.Enqueue(Command{ID: "2", AgentID: "a"}))

	err := q.Enqueue(Command{ID: "3", AgentID: "a"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestRequeuePutsCommandBackAtFront(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(Command{ID: "1", AgentID: "a"}))

	cmd, ok := q.Dequeue("a")
	require.True(t, ok)

	require.NoError(t, q.Enqueue(Command{ID: "2", AgentID: "a"}))
	require.NoError(t, q.Requeue(cmd))

	first, ok := q.Dequeue("a")
	require.True(t, ok)
	assert.Equal(t, "1", first.ID)

	second, ok := q.Dequeue("a")
	require.True(t, ok)
	assert.Equal(t, "2", second.ID)
}

func TestRemoveForRunDropsPendingCommand(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(Command{ID: "1", AgentID: "a", RunID: "run-1"}))
	require.NoError(t, q.Enqueue(Command{ID: "2", AgentID: "a", RunID: "run-2"}))

	removed := q.RemoveForRun("a", "run-1")
	assert.True(t, removed)
	assert.Equal(t, 1, q.Len("a"))

	cmd, ok := q.Dequeue("a")
	require.True(t, ok)
	assert.Equal(t, "run-2", cmd.RunID)
}

func TestConcurrentEnqueueDequeueDoesNotRace(t *testing.T) {
	q := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = q.Enqueue(Command{ID: "c", AgentID: "agent-a"})
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Dequeue("agent-b")
		}()
	}
	wg.Wait()

	total := 0
	for {
		if _, ok := q.Dequeue("agent-a"); !ok {
			break
		}
		total++
	}
	assert.Equal(t, 50, total)
}
