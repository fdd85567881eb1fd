package booking

import (
	"context"
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
	"tutor_chat_server/pkg/enum/conversation_kind_enum"
	"tutor_chat_server/pkg/enum/relation_status_enum"
	"tutor_chat_server/pkg/enum/user_role_enum"
	"tutor_chat_server/pkg/errorx"
)

var (
	teacher = request.Identity{UserId: "T1", Role: user_role_enum.Teacher, Nickname: "Ms Li"}
	parent  = request.Identity{UserId: "P1", Role: user_role_enum.Parent, Nickname: "Wang Ma"}
)

type conversationAPI interface {
	ConversationLifecycle
	CreateConversation(ctx context.Context, requester request.Identity, req request.CreateConversationRequest) (*respond.ConversationRespond, error)
	AuthorizeSender(ctx context.Context, userId, conversationId string) (*model.Conversation, error)
}

type fixture struct {
	svc   *bookingService
	repos *repository.Repositories
	convs conversationAPI
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos, _ := databasetest.Open(t)
	convs := conversation.NewConversationService(repos, redistest.NewMemoryCache(), time.Minute)
	return &fixture{svc: NewBookingService(repos, convs), repos: repos, convs: convs}
}

func (f *fixture) handle(t *testing.T, ev Event) {
	t.Helper()
	if err := f.svc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle %s: %v", ev.EventId, err)
	}
}

func (f *fixture) courseConversation(t *testing.T) *model.Conversation {
	t.Helper()
	conv, err := f.repos.Conversation.FindByPair(context.Background(), int8(conversation_kind_enum.CourseLinked), "T1", "S1")
	if err != nil {
		t.Fatalf("course conversation: %v", err)
	}
	return conv
}

func event(id, typ string, remaining int) Event {
	return Event{
		EventId:                 id,
		Type:                    typ,
		Teacher:                 Party{Id: "T1", Nickname: "Ms Li"},
		Student:                 Party{Id: "S1", Nickname: "Xiao Ming"},
		Parent:                  &Party{Id: "P1", Nickname: "Wang Ma"},
		RemainingActiveBookings: remaining,
		OccurredAt:              time.Now().UnixMilli(),
	}
}

func TestPendingBookingRegistersRelation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.handle(t, event("e1", EventPending, 1))

	user, err := f.repos.User.FindByUuid(ctx, "P1")
	if err != nil || user.Role != "parent" || user.Nickname != "Wang Ma" {
		t.Fatalf("parent = %+v, %v", user, err)
	}
	rel, err := f.repos.Relation.Find(ctx, "T1", "P1", "S1")
	if err != nil || rel.Status != relation_status_enum.Pending {
		t.Fatalf("relation = %+v, %v", rel, err)
	}
	// 有关系之后老师可以主动联系家长
	if _, err := f.convs.CreateConversation(ctx, teacher, request.CreateConversationRequest{TargetId: "P1"}); err != nil {
		t.Fatalf("teacher initiated: %v", err)
	}
	if _, err := f.repos.Conversation.FindByPair(ctx, int8(conversation_kind_enum.CourseLinked), "T1", "S1"); !errorx.IsNotFound(err) {
		t.Fatalf("pending booking must not open a course conversation, err = %v", err)
	}
}

func TestCourseLinkedReadOnlyLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := redistest.NewMemoryCache()
	msgs := message.NewMessageService(f.repos, conversation.NewConversationService(f.repos, cache, time.Minute), nil, cache, message.Options{})

	f.handle(t, event("e1", EventConfirmed, 1))
	conv := f.courseConversation(t)
	if !conv.Writable() || conv.StudentId != "S1" || conv.ParentId != "P1" {
		t.Fatalf("conversation = %+v", conv)
	}
	if _, _, err := msgs.Append(ctx, conv, teacher, &request.SendMessageRequest{Content: "see you on Monday"}); err != nil {
		t.Fatal(err)
	}

	// 还有其他课程，保持可写
	f.handle(t, event("e2", EventEnded, 1))
	if !f.courseConversation(t).Writable() {
		t.Fatal("conversation became read-only while bookings remain")
	}

	f.handle(t, event("e3", EventCancelled, 0))
	conv = f.courseConversation(t)
	if !conv.IsReadOnly {
		t.Fatal("conversation still writable after last booking ended")
	}
	if _, err := f.convs.AuthorizeSender(ctx, "P1", conv.Uuid); errorx.GetCode(err) != errorx.CodeReadOnlyConversation {
		t.Fatalf("send check err = %v", err)
	}
	_, _, err := msgs.Append(ctx, conv, parent, &request.SendMessageRequest{Content: "late"})
	if errorx.GetCode(err) != errorx.CodeReadOnlyConversation {
		t.Fatalf("append err = %v", err)
	}
	total, _ := f.repos.Message.CountByConversation(ctx, conv.Uuid)
	if total != 1 {
		t.Fatalf("total = %d, read-only send must not persist", total)
	}
	rel, _ := f.repos.Relation.Find(ctx, "T1", "P1", "S1")
	if rel.Status != relation_status_enum.Ended {
		t.Fatalf("relation status = %d", rel.Status)
	}

	// 新预约确认后恢复可写，沿用原会话
	f.handle(t, event("e4", EventConfirmed, 1))
	again := f.courseConversation(t)
	if again.Uuid != conv.Uuid || !again.Writable() {
		t.Fatalf("reopened = %+v", again)
	}
}

func TestDuplicateEventIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.handle(t, event("e1", EventConfirmed, 1))
	f.handle(t, event("e2", EventEnded, 0))
	f.handle(t, event("e3", EventConfirmed, 1))

	// e2 重投不应再次置为只读
	f.handle(t, event("e2", EventEnded, 0))
	if !f.courseConversation(t).Writable() {
		t.Fatal("redelivered event was applied twice")
	}
}

func TestRevokedRelationDeactivatesConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.handle(t, event("e1", EventConfirmed, 1))
	direct, err := f.convs.CreateConversation(ctx, parent, request.CreateConversationRequest{TargetId: "T1"})
	if err != nil {
		t.Fatal(err)
	}

	f.handle(t, event("e2", EventRevoked, 0))

	if f.courseConversation(t).IsActive {
		t.Fatal("course conversation still active")
	}
	conv, err := f.repos.Conversation.FindByUuid(ctx, direct.ConversationId)
	if err != nil || conv.IsActive {
		t.Fatalf("parent conversation = %+v, %v", conv, err)
	}
	if _, err := f.convs.AuthorizeSender(ctx, "P1", direct.ConversationId); errorx.GetCode(err) != errorx.CodeReadOnlyConversation {
		t.Fatalf("send to inactive conversation err = %v", err)
	}
}

func TestUnknownEventTypeIsDropped(t *testing.T) {
	f := newFixture(t)
	ev := event("e1", "booking.rescheduled", 1)
	f.handle(t, ev)
	done, err := f.repos.BookingEvent.Exists(context.Background(), "e1")
	if err != nil || !done {
		t.Fatalf("unknown event not recorded: %v, %v", done, err)
	}
}

func TestConfirmedWithoutStudentIsRejected(t *testing.T) {
	f := newFixture(t)
	ev := event("e1", EventConfirmed, 1)
	ev.Student = Party{}
	f.handle(t, ev)

	_, err := f.repos.Conversation.FindByPair(context.Background(), int8(conversation_kind_enum.CourseLinked), "T1", "")
	if !errorx.IsNotFound(err) {
		t.Fatalf("expected no course conversation, got %v", err)
	}
	// 被拒绝的事件不记录，修正后的同 id 事件仍可处理
	if done, _ := f.repos.BookingEvent.Exists(context.Background(), "e1"); done {
		t.Fatal("rejected event should not be recorded")
	}
}
