package chat

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"tutor_chat_server/internal/dao/database/repository"
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/pkg/enum/user_role_enum"
)

// fakeEndpoint 记录收到的下行帧
type fakeEndpoint struct {
	id, user string
	inbox    chan []byte
	mu       sync.Mutex
	fail     error
}

func newFakeEndpoint(id, user string) *fakeEndpoint {
	return &fakeEndpoint{id: id, user: user, inbox: make(chan []byte, 64)}
}

func (f *fakeEndpoint) ID() string     { return f.id }
func (f *fakeEndpoint) UserID() string { return f.user }

func (f *fakeEndpoint) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.inbox <- payload
	return nil
}

func (f *fakeEndpoint) expectPush(t *testing.T, typ string) json.RawMessage {
	t.Helper()
	select {
	case raw := <-f.inbox:
		var push struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &push); err != nil {
			t.Fatalf("%s: bad frame %s", f.id, raw)
		}
		if push.Type != typ {
			t.Fatalf("%s: got %s, want %s", f.id, push.Type, typ)
		}
		return push.Data
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no %s push", f.id, typ)
	}
	return nil
}

func (f *fakeEndpoint) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case raw := <-f.inbox:
		t.Fatalf("%s: unexpected frame %s", f.id, raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func ident(userId string, role user_role_enum.Role) request.Identity {
	return request.Identity{UserId: userId, Role: role, Nickname: userId}
}

func TestRegistryJoinLeaveRemove(t *testing.T) {
	r := NewRegistry()
	a := newFakeEndpoint("c1", "P1")
	b := newFakeEndpoint("c2", "P1")
	r.Add(a, ident("P1", user_role_enum.Parent))
	r.Add(b, ident("P1", user_role_enum.Parent))

	if err := r.Join("c1", "conv", repository.MessageKey{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Join("c1", "conv", repository.MessageKey{}); err != nil {
		t.Fatalf("join must be idempotent: %v", err)
	}
	if err := r.Join("c2", "conv", repository.MessageKey{}); err != nil {
		t.Fatal(err)
	}
	if got := len(r.Members("conv")); got != 2 {
		t.Fatalf("members = %d", got)
	}
	if r.Len() != 2 {
		t.Fatalf("connections = %d", r.Len())
	}

	r.Leave("c2", "conv")
	r.Leave("c2", "conv")
	if r.IsMember("c2", "conv") {
		t.Fatal("c2 still a member after leave")
	}

	if !r.Remove("c1") {
		t.Fatal("remove reported missing connection")
	}
	if r.IsMember("c1", "conv") || len(r.Members("conv")) != 0 {
		t.Fatal("memberships survived disconnect")
	}
	if _, ok := r.Identity("c2"); !ok {
		t.Fatal("other connection of the same user was removed")
	}

	if err := r.Join("c1", "conv", repository.MessageKey{}); !errors.Is(err, ErrConnGone) {
		t.Fatalf("join after disconnect = %v", err)
	}
}

func TestRegistryDispatchFiltersWatermarkAndOrigin(t *testing.T) {
	r := NewRegistry()
	early := newFakeEndpoint("early", "T1")
	late := newFakeEndpoint("late", "P1")
	origin := newFakeEndpoint("origin", "P1")
	for _, ep := range []*fakeEndpoint{early, late, origin} {
		r.Add(ep, ident(ep.user, user_role_enum.Parent))
	}
	_ = r.Join("early", "conv", repository.MessageKey{SendAt: 100, Uuid: 1})
	_ = r.Join("late", "conv", repository.MessageKey{SendAt: 200, Uuid: 5})
	_ = r.Join("origin", "conv", repository.MessageKey{SendAt: 100, Uuid: 1})

	push, _ := messagePush(respond.MessageRespond{MessageId: 3})
	n := r.Dispatch("conv", "origin", repository.MessageKey{SendAt: 150, Uuid: 3}, push)
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	early.expectPush(t, respond.WsTypeMessageReceived)
	late.expectNothing(t)
	origin.expectNothing(t)

	// 输入状态不看水位线
	typing, _ := typingPush(respond.WsTypeUserTyping, respond.TypingRespond{ConversationId: "conv", UserId: "P1"})
	if n := r.Broadcast("conv", "origin", typing); n != 2 {
		t.Fatalf("typing delivered = %d, want 2", n)
	}
}

func TestRegistryDispatchSkipsFailingEndpoint(t *testing.T) {
	r := NewRegistry()
	bad := newFakeEndpoint("bad", "T1")
	bad.fail = errors.New("buffer full")
	good := newFakeEndpoint("good", "P1")
	r.Add(bad, ident("T1", user_role_enum.Teacher))
	r.Add(good, ident("P1", user_role_enum.Parent))
	_ = r.Join("bad", "conv", repository.MessageKey{})
	_ = r.Join("good", "conv", repository.MessageKey{})

	if n := r.Dispatch("conv", "", repository.MessageKey{SendAt: 1, Uuid: 1}, []byte(`{"type":"messageReceived"}`)); n != 1 {
		t.Fatalf("delivered = %d", n)
	}
	good.expectPush(t, respond.WsTypeMessageReceived)
}
