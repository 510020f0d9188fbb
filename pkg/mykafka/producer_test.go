package mykafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEvent(t *testing.T) {
	t.Parallel()
	w := &recordingWriter{}
	p := NewProducerWithWriter(w)

	err := p.PublishEvent(context.Background(), "order_events", "order-1", map[string]string{"type": "order_created"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order_events", w.msgs[0].Topic)
	assert.Equal(t, "order-1", string(w.msgs[0].Key))

	var got map[string]string
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "order_created", got["type"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishEvent_Errors(t *testing.T) {
	t.Parallel()
	w := &recordingWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w)

	err := p.PublishEvent(context.Background(), "order_events", "k", struct{}{})
	require.Error(t, err)

	err = p.PublishEvent(context.Background(), "order_events", "k", make(chan int))
	require.Error(t, err)
}

func TestNewProducer_FlushesSmallBatchesQuickly(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"})
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, batchTimeout, w.BatchTimeout)
	assert.Less(t, w.BatchTimeout, time.Second)
	require.NoError(t, p.Close())
}
