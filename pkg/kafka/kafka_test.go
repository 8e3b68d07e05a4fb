package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`ok`)},
			{Offset: 2, Value: []byte(`bad`)},
			{Offset: 3, Value: []byte(`ok`)},
		},
		cancel: cancel,
	}
	var seen []string
	c := &Consumer{
		reader: r,
		logger: slog.Default(),
		handler: func(ctx context.Context, key, value []byte) error {
			seen = append(seen, string(value))
			if string(value) == "bad" {
				return errors.New("rejected")
			}
			return nil
		},
	}

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, []string{"ok", "bad", "ok"}, seen)
	assert.Equal(t, []int64{1, 3}, r.committed)
	assert.True(t, r.closed)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Query string `json:"query"`
	}
	p, err := DecodeJSON[payload]([]byte(`{"query":"cat"}`))
	require.NoError(t, err)
	assert.Equal(t, "cat", p.Query)

	_, err = DecodeJSON[payload]([]byte(`{`))
	assert.Error(t, err)
}

func TestEncodeEventsSkipsUnencodable(t *testing.T) {
	msgs := encodeEvents([]Event{
		{Key: "a", Value: map[string]int{"n": 1}},
		{Key: "b", Value: make(chan int)},
	}, slog.Default())
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", string(msgs[0].Key))
	assert.JSONEq(t, `{"n":1}`, string(msgs[0].Value))
}
