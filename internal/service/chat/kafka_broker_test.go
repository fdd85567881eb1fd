package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// loopbackTransport 写入的消息原样回读，模拟单分区 topic
type loopbackTransport struct {
	queue chan kafka.Message

	mu     sync.Mutex
	offset int64
	closed bool
}

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{queue: make(chan kafka.Message, 16)}
}

func (l *loopbackTransport) WriteMessage(_ context.Context, key, value []byte) error {
	l.mu.Lock()
	l.offset++
	msg := kafka.Message{Key: key, Value: value, Offset: l.offset}
	l.mu.Unlock()
	l.queue <- msg
	return nil
}

func (l *loopbackTransport) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg := <-l.queue:
		return msg, nil
	}
}

func (l *loopbackTransport) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

func TestKafkaBrokerSurvivesPanicAndKeepsOrder(t *testing.T) {
	transport := newLoopbackTransport()
	broker := NewKafkaBroker(transport)

	got := make(chan int64, 8)
	broker.Start(func(env *Envelope) {
		if env.MessageId == 2 {
			panic("deliver failed")
		}
		got <- env.MessageId
	})

	ctx := context.Background()
	for _, id := range []int64{1, 2} {
		env := &Envelope{Kind: EnvelopeMessage, ConversationId: "C1", MessageId: id, Push: json.RawMessage(`{}`)}
		if err := broker.Publish(ctx, env); err != nil {
			t.Fatal(err)
		}
	}
	// 无法解析的消息跳过
	if err := transport.WriteMessage(ctx, []byte("C1"), []byte("not json")); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int64{3, 4} {
		env := &Envelope{Kind: EnvelopeMessage, ConversationId: "C1", MessageId: id, Push: json.RawMessage(`{}`)}
		if err := broker.Publish(ctx, env); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range []int64{1, 3, 4} {
		select {
		case id := <-got:
			if id != want {
				t.Fatalf("delivered %d, want %d", id, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d not delivered", want)
		}
	}

	broker.Close()
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if !transport.closed {
		t.Fatal("transport not closed")
	}
}

func TestKafkaBrokerPublishKeysByConversation(t *testing.T) {
	transport := newLoopbackTransport()
	broker := NewKafkaBroker(transport)
	defer broker.Close()

	env := &Envelope{Kind: EnvelopeTyping, ConversationId: "C9", OriginConnId: "c1", Push: json.RawMessage(`{"type":"userTyping"}`)}
	if err := broker.Publish(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	msg := <-transport.queue
	if string(msg.Key) != "C9" {
		t.Fatalf("key = %q", msg.Key)
	}
	var back Envelope
	if err := json.Unmarshal(msg.Value, &back); err != nil || back.OriginConnId != "c1" {
		t.Fatalf("value = %s, %v", msg.Value, err)
	}
}
