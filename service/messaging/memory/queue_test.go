package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/coretask/service/messaging"
)

type reading struct {
	Kind  int
	Value []byte
}

func TestQueue_PublishConsume(t *testing.T) {
	queue := NewQueue[reading](DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Publish(ctx, &reading{Kind: i}))
	}
	assert.Equal(t, 3, queue.Size())

	for i := 0; i < 3; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, message.T().Kind)
		assert.NotEmpty(t, message.ID())
		assert.NoError(t, message.Ack())
		assert.ErrorIs(t, message.Ack(), messaging.ErrAlreadyProcessed)
		assert.ErrorIs(t, message.Nack(nil), messaging.ErrAlreadyProcessed)
	}
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_Full(t *testing.T) {
	config := DefaultConfig()
	config.Capacity = 2
	queue := NewQueue[reading](config)
	assert.Equal(t, 2, queue.Capacity())

	expired, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	testCases := []struct {
		name      string
		expectErr bool
	}{
		{name: "first accepted with expired context"},
		{name: "second accepted with expired context"},
		{name: "third rejected", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			started := time.Now()
			err := queue.Publish(expired, &reading{})
			assert.Less(t, time.Since(started), 50*time.Millisecond)
			if tc.expectErr {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestQueue_BlockedPublishResumes(t *testing.T) {
	config := DefaultConfig()
	config.Capacity = 1
	queue := NewQueue[reading](config)
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &reading{Kind: 1}))

	published := make(chan error, 1)
	go func() {
		published <- queue.Publish(ctx, &reading{Kind: 2})
	}()
	select {
	case <-published:
		t.Fatal("publish should block while the queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, message.T().Kind)
	assert.NoError(t, <-published)
}

func TestQueue_Retries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = time.Millisecond
	queue := NewQueue[reading](config)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &reading{Kind: 7}))
	var id string
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		if id == "" {
			id = message.ID()
		}
		assert.Equal(t, id, message.ID())
		assert.Equal(t, 7, message.T().Kind)
		assert.NoError(t, message.Nack(errors.New("handler failed")))
	}
	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_Concurrency(t *testing.T) {
	config := DefaultConfig()
	config.Capacity = 8
	queue := NewQueue[reading](config)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	producers, perProducer := 10, 10
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				payload := reading{Kind: producer, Value: []byte(fmt.Sprintf("m%d", j))}
				assert.NoError(t, queue.Publish(ctx, &payload))
			}
		}(i)
	}

	received := make(map[string]int)
	for i := 0; i < producers*perProducer; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		received[fmt.Sprintf("%d-%s", message.T().Kind, message.T().Value)]++
		require.NoError(t, message.Ack())
	}
	wg.Wait()
	assert.Len(t, received, producers*perProducer)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ConsumeCancelled(t *testing.T) {
	queue := NewQueue[reading](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	message, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, message)
}
