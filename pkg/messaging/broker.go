package messaging

import (
	"context"
	"encoding/json"
	"sync"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// NopBroker drops every message. It stands in when Redis is disabled.
type NopBroker struct{}

func (NopBroker) Publish(context.Context, string, interface{}) error { return nil }

func (NopBroker) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (NopBroker) Close() error { return nil }

// Message is one publish captured by a RecordingBroker.
type Message struct {
	Channel string
	Payload []byte
}

// RecordingBroker keeps published messages in memory. It backs the memory
// storage driver and tests.
type RecordingBroker struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, is returned by every Publish.
	Err error
}

func (b *RecordingBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	payload, err := Marshal(message)
	if err != nil {
		return err
	}
	b.messages = append(b.messages, Message{Channel: channel, Payload: payload})
	return nil
}

func (b *RecordingBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return NopBroker{}.Subscribe(ctx, channel)
}

func (b *RecordingBroker) Close() error { return nil }

// Messages returns a copy of everything published so far.
func (b *RecordingBroker) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Marshal encodes a message for the wire. Raw JSON passes through untouched.
func Marshal(message interface{}) ([]byte, error) {
	switch m := message.(type) {
	case json.RawMessage:
		return m, nil
	case []byte:
		return m, nil
	default:
		return json.Marshal(message)
	}
}
