package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher serves queued messages, then blocks until the context ends.
type fakeFetcher struct {
	msgs      chan kafkago.Message
	fetchErr  error
	committed []kafkago.Message
}

func newFakeFetcher(msgs ...kafkago.Message) *fakeFetcher {
	f := &fakeFetcher{msgs: make(chan kafkago.Message, len(msgs))}
	for _, m := range msgs {
		f.msgs <- m
	}
	return f
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	default:
	}
	if f.fetchErr != nil {
		return kafkago.Message{}, f.fetchErr
	}
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeFetcher) Close() error { return nil }

type fakeWriter struct {
	written []kafkago.Message
	err     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func offsetMsg(offset int64) kafkago.Message {
	return kafkago.Message{Topic: "raw-incident-records", Offset: offset, Value: []byte(`{}`)}
}

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("key-1"),
		Value:     []byte(`{"id":"inc-1"}`),
		Topic:     "raw-incident-records",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("journal")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("key-1"), raw.Key)
	assert.JSONEq(t, `{"id":"inc-1"}`, string(raw.Value))
	assert.Equal(t, "raw-incident-records", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "journal", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestReader_ExtractBatch_FullBatch(t *testing.T) {
	f := newFakeFetcher(offsetMsg(1), offsetMsg(2), offsetMsg(3))
	r := &Reader{reader: f, flushInterval: time.Second, logger: discardLogger()}

	batch, err := r.ExtractBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].Offset)
	assert.Equal(t, int64(2), batch[1].Offset)

	require.NoError(t, batch[1].Commit(context.Background()))
	require.Len(t, f.committed, 1)
	assert.Equal(t, int64(2), f.committed[0].Offset)
}

func TestReader_ExtractBatch_FlushesPartialBatch(t *testing.T) {
	f := newFakeFetcher(offsetMsg(7))
	r := &Reader{reader: f, flushInterval: 20 * time.Millisecond, logger: discardLogger()}

	batch, err := r.ExtractBatch(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestReader_ExtractBatch_FetchErrorAfterFirst(t *testing.T) {
	f := newFakeFetcher(offsetMsg(1))
	f.fetchErr = errors.New("broker gone")
	r := &Reader{reader: f, flushInterval: time.Second, logger: discardLogger()}

	batch, err := r.ExtractBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestReader_ExtractBatch_FirstFetchError(t *testing.T) {
	f := newFakeFetcher()
	f.fetchErr = errors.New("broker gone")
	r := &Reader{reader: f, flushInterval: time.Second, logger: discardLogger()}

	_, err := r.ExtractBatch(context.Background(), 10)
	require.EqualError(t, err, "broker gone")
}

func TestReader_ExtractBatch_Canceled(t *testing.T) {
	r := &Reader{reader: newFakeFetcher(), flushInterval: time.Second, logger: discardLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ExtractBatch(ctx, 10)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSerializeToMessage(t *testing.T) {
	msg := serializeToMessage(domain.OutputEvent{
		Key:   []byte("inc-1"),
		Value: []byte(`{"id":"inc-1"}`),
		Headers: map[string]string{
			"processed_at": "2026-03-05T08:00:00Z",
			"kind":         "fire",
			"geo_source":   "",
		},
	})

	assert.Equal(t, []byte("inc-1"), msg.Key)
	assert.JSONEq(t, `{"id":"inc-1"}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("fire"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
}

func TestWriter_LoadBatch(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: discardLogger()}

	require.NoError(t, w.LoadBatch(context.Background(), nil))
	assert.Empty(t, fw.written)

	err := w.LoadBatch(context.Background(), []domain.OutputEvent{
		{Key: []byte("a"), Value: []byte(`{}`)},
		{Key: []byte("b"), Value: []byte(`{}`)},
	})
	require.NoError(t, err)
	require.Len(t, fw.written, 2)
	assert.Equal(t, []byte("b"), fw.written[1].Key)
}

func TestWriter_LoadBatchError(t *testing.T) {
	w := &Writer{writer: &fakeWriter{err: errors.New("no leader")}, logger: discardLogger()}

	err := w.LoadBatch(context.Background(), []domain.OutputEvent{{Key: []byte("a")}})
	require.EqualError(t, err, "no leader")
}
