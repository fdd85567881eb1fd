package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"tutor_chat_server/internal/dao/database/databasetest"
	"tutor_chat_server/internal/dao/database/repository"
	"tutor_chat_server/internal/dao/redis/redistest"
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/internal/model"
	"tutor_chat_server/internal/service/conversation"
	"tutor_chat_server/internal/service/message"
	"tutor_chat_server/pkg/enum/user_role_enum"
	"tutor_chat_server/pkg/errorx"
)

type hubConversations interface {
	ConversationAuthorizer
	CreateConversation(ctx context.Context, requester request.Identity, req request.CreateConversationRequest) (*respond.ConversationRespond, error)
	SetReadOnly(ctx context.Context, conversationId string, readOnly bool) error
}

type hubFixture struct {
	hub    *Hub
	repos  *repository.Repositories
	convs  hubConversations
	convId string
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	ctx := context.Background()
	repos, _ := databasetest.Open(t)
	for _, u := range []model.UserInfo{
		{Uuid: "T1", Nickname: "Ms Li", Role: "teacher"},
		{Uuid: "P1", Nickname: "Wang Ma", Role: "parent"},
		{Uuid: "P2", Nickname: "Zhao Ba", Role: "parent"},
	} {
		u := u
		if err := repos.User.Upsert(ctx, &u); err != nil {
			t.Fatal(err)
		}
	}
	cache := redistest.NewMemoryCache()
	convs := conversation.NewConversationService(repos, cache, time.Minute)
	msgs := message.NewMessageService(repos, convs, nil, cache, message.Options{})

	broker := NewChannelBroker()
	hub := NewHub(NewRegistry(), convs, msgs, broker)
	broker.Start(hub.Deliver)
	t.Cleanup(broker.Close)

	conv, err := convs.CreateConversation(ctx, ident("P1", user_role_enum.Parent), request.CreateConversationRequest{TargetId: "T1"})
	if err != nil {
		t.Fatal(err)
	}
	return &hubFixture{hub: hub, repos: repos, convs: convs, convId: conv.ConversationId}
}

func (f *hubFixture) connect(t *testing.T, connId, userId string, role user_role_enum.Role) *fakeEndpoint {
	t.Helper()
	ep := newFakeEndpoint(connId, userId)
	f.hub.OnConnect(ep, ident(userId, role))
	return ep
}

func (f *hubFixture) join(t *testing.T, eps ...*fakeEndpoint) {
	t.Helper()
	for _, ep := range eps {
		if err := f.hub.Join(context.Background(), ep.id, f.convId); err != nil {
			t.Fatalf("join %s: %v", ep.id, err)
		}
	}
}

func wantCode(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil || errorx.GetCode(err) != code {
		t.Fatalf("err = %v, want code %d", err, code)
	}
}

func TestParentInitiatedWithTwoParentConnections(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	phone := f.connect(t, "p1-phone", "P1", user_role_enum.Parent)
	laptop := f.connect(t, "p1-laptop", "P1", user_role_enum.Parent)
	teacher := f.connect(t, "t1", "T1", user_role_enum.Teacher)
	f.join(t, phone, laptop, teacher)

	ack, err := f.hub.SendMessage(ctx, "p1-phone", &request.SendMessageRequest{ConversationId: f.convId, Content: "Is Tuesday ok?"})
	if err != nil {
		t.Fatal(err)
	}
	if ack.MessageId == 0 || ack.SendId != "P1" {
		t.Fatalf("ack = %+v", ack)
	}

	for _, ep := range []*fakeEndpoint{laptop, teacher} {
		var got respond.MessageRespond
		if err := json.Unmarshal(ep.expectPush(t, respond.WsTypeMessageReceived), &got); err != nil {
			t.Fatal(err)
		}
		if got.MessageId != ack.MessageId || got.Content != "Is Tuesday ok?" {
			t.Fatalf("%s got %+v", ep.id, got)
		}
	}
	// 发起连接只拿 ack
	phone.expectNothing(t)

	// 老师回复，家长两端都收到
	if _, err := f.hub.SendMessage(ctx, "t1", &request.SendMessageRequest{ConversationId: f.convId, Content: "Yes"}); err != nil {
		t.Fatal(err)
	}
	phone.expectPush(t, respond.WsTypeMessageReceived)
	laptop.expectPush(t, respond.WsTypeMessageReceived)
	teacher.expectNothing(t)

	// 断开一端不影响另一端
	f.hub.OnDisconnect("p1-phone")
	if _, err := f.hub.SendMessage(ctx, "t1", &request.SendMessageRequest{ConversationId: f.convId, Content: "See you"}); err != nil {
		t.Fatal(err)
	}
	laptop.expectPush(t, respond.WsTypeMessageReceived)
	phone.expectNothing(t)
}

func TestMessagesArriveInPersistedOrder(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	parent := f.connect(t, "p1", "P1", user_role_enum.Parent)
	teacher := f.connect(t, "t1", "T1", user_role_enum.Teacher)
	f.join(t, parent, teacher)

	var sent []int64
	for i := 0; i < 10; i++ {
		ack, err := f.hub.SendMessage(ctx, "p1", &request.SendMessageRequest{ConversationId: f.convId, Content: "m"})
		if err != nil {
			t.Fatal(err)
		}
		sent = append(sent, ack.MessageId)
	}
	var prev repository.MessageKey
	for i := range sent {
		var got respond.MessageRespond
		_ = json.Unmarshal(teacher.expectPush(t, respond.WsTypeMessageReceived), &got)
		if got.MessageId != sent[i] {
			t.Fatalf("push %d = %d, want %d", i, got.MessageId, sent[i])
		}
		key := repository.MessageKey{SendAt: got.SendAt, Uuid: got.MessageId}
		if i > 0 && !prev.Less(key) {
			t.Fatalf("push %d out of key order", i)
		}
		prev = key
	}
}

func TestJoinRequiresParticipant(t *testing.T) {
	f := newHubFixture(t)
	stranger := f.connect(t, "p2", "P2", user_role_enum.Parent)
	admin := f.connect(t, "a1", "A1", user_role_enum.Admin)

	wantCode(t, f.hub.Join(context.Background(), stranger.id, f.convId), errorx.CodeForbidden)
	wantCode(t, f.hub.Join(context.Background(), admin.id, f.convId), errorx.CodeForbidden)
	wantCode(t, f.hub.Join(context.Background(), "p2", "C-missing"), errorx.CodeNotFound)
	if f.hub.Registry().IsMember("p2", f.convId) {
		t.Fatal("forbidden join left a membership behind")
	}

	_, err := f.hub.SendMessage(context.Background(), "p2", &request.SendMessageRequest{ConversationId: f.convId, Content: "hi"})
	wantCode(t, err, errorx.CodeForbidden)
}

func TestJoinAfterDisconnectFails(t *testing.T) {
	f := newHubFixture(t)
	f.connect(t, "p1", "P1", user_role_enum.Parent)
	f.hub.OnDisconnect("p1")
	if err := f.hub.Join(context.Background(), "p1", f.convId); err != ErrConnGone {
		t.Fatalf("err = %v, want ErrConnGone", err)
	}
}

func TestNoReplayOfMessagesPersistedBeforeJoin(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	parent := f.connect(t, "p1", "P1", user_role_enum.Parent)
	f.join(t, parent)
	ack, err := f.hub.SendMessage(ctx, "p1", &request.SendMessageRequest{ConversationId: f.convId, Content: "before"})
	if err != nil {
		t.Fatal(err)
	}

	teacher := f.connect(t, "t1", "T1", user_role_enum.Teacher)
	f.join(t, teacher)

	// 模拟代理晚到的旧事件
	push, _ := messagePush(*ack)
	f.hub.Deliver(&Envelope{Kind: EnvelopeMessage, ConversationId: f.convId, OriginConnId: "p1", SendAt: ack.SendAt, MessageId: ack.MessageId, Push: push})
	teacher.expectNothing(t)

	if _, err := f.hub.SendMessage(ctx, "p1", &request.SendMessageRequest{ConversationId: f.convId, Content: "after"}); err != nil {
		t.Fatal(err)
	}
	teacher.expectPush(t, respond.WsTypeMessageReceived)
}

func TestReadOnlySendIsRejectedAndNotBroadcast(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	parent := f.connect(t, "p1", "P1", user_role_enum.Parent)
	teacher := f.connect(t, "t1", "T1", user_role_enum.Teacher)
	f.join(t, parent, teacher)

	if err := f.convs.SetReadOnly(ctx, f.convId, true); err != nil {
		t.Fatal(err)
	}
	_, err := f.hub.SendMessage(ctx, "p1", &request.SendMessageRequest{ConversationId: f.convId, Content: "hello?"})
	wantCode(t, err, errorx.CodeReadOnlyConversation)
	teacher.expectNothing(t)

	total, _ := f.repos.Message.CountByConversation(ctx, f.convId)
	if total != 0 {
		t.Fatalf("total = %d", total)
	}
}

func TestDuplicateSendIsNotRebroadcast(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	parent := f.connect(t, "p1", "P1", user_role_enum.Parent)
	teacher := f.connect(t, "t1", "T1", user_role_enum.Teacher)
	f.join(t, parent, teacher)

	req := &request.SendMessageRequest{ConversationId: f.convId, Content: "once", ClientMsgId: "k1"}
	first, err := f.hub.SendMessage(ctx, "p1", req)
	if err != nil {
		t.Fatal(err)
	}
	teacher.expectPush(t, respond.WsTypeMessageReceived)

	again, err := f.hub.SendMessage(ctx, "p1", req)
	if err != nil || again.MessageId != first.MessageId {
		t.Fatalf("retry = %+v, %v", again, err)
	}
	teacher.expectNothing(t)
}

func TestTyping(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	parent := f.connect(t, "p1", "P1", user_role_enum.Parent)
	teacher := f.connect(t, "t1", "T1", user_role_enum.Teacher)

	// 未 join 不能发输入状态
	wantCode(t, f.hub.TypingStart(ctx, "p1", f.convId), errorx.CodeForbidden)

	f.join(t, parent, teacher)
	if err := f.hub.TypingStart(ctx, "p1", f.convId); err != nil {
		t.Fatal(err)
	}
	var typing respond.TypingRespond
	_ = json.Unmarshal(teacher.expectPush(t, respond.WsTypeUserTyping), &typing)
	if typing.UserId != "P1" || typing.DisplayName != "P1" || typing.ConversationId != f.convId {
		t.Fatalf("typing = %+v", typing)
	}
	parent.expectNothing(t)

	if err := f.hub.TypingStop(ctx, "p1", f.convId); err != nil {
		t.Fatal(err)
	}
	teacher.expectPush(t, respond.WsTypeUserStoppedTyping)
}
