package https_server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tutor_chat_server/internal/config"
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/internal/handler"
	"tutor_chat_server/internal/https_server"
	"tutor_chat_server/internal/model"
	"tutor_chat_server/internal/service"
	"tutor_chat_server/internal/service/booking"
	"tutor_chat_server/internal/service/chat"
	"tutor_chat_server/pkg/errorx"
	"tutor_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type stubConversationService struct{}

func (stubConversationService) CreateConversation(_ context.Context, requester request.Identity, req request.CreateConversationRequest) (*respond.ConversationRespond, error) {
	return &respond.ConversationRespond{ConversationId: "C_TEST", ParentId: requester.UserId, TeacherId: req.TargetId}, nil
}
func (stubConversationService) ListConversationsForUser(context.Context, string) ([]respond.ConversationRespond, error) {
	return []respond.ConversationRespond{{ConversationId: "C_TEST"}}, nil
}
func (stubConversationService) GetConversation(_ context.Context, _ request.Identity, conversationId string) (*respond.ConversationRespond, error) {
	if conversationId != "C_TEST" {
		return nil, errorx.New(errorx.CodeNotFound, "会话不存在")
	}
	return &respond.ConversationRespond{ConversationId: conversationId}, nil
}
func (stubConversationService) AuthorizeParticipant(_ context.Context, _, conversationId string) (*model.Conversation, error) {
	return &model.Conversation{Uuid: conversationId, IsActive: true}, nil
}
func (stubConversationService) AuthorizeSender(_ context.Context, _, conversationId string) (*model.Conversation, error) {
	return &model.Conversation{Uuid: conversationId, IsActive: true}, nil
}

type stubMessageService struct{}

func (stubMessageService) Page(context.Context, request.Identity, request.PageMessagesRequest) (*respond.PageMessagesRespond, error) {
	return &respond.PageMessagesRespond{Messages: []respond.MessageRespond{}}, nil
}
func (stubMessageService) UploadAttachment(_ context.Context, _ request.Identity, _ string, fh *multipart.FileHeader) (*respond.AttachmentRespond, error) {
	return &respond.AttachmentRespond{FileName: fh.Filename, FileUrl: "/static/files/x.txt", FileSize: fh.Size, FileType: "text/plain"}, nil
}
func (stubMessageService) Append(_ context.Context, conv *model.Conversation, sender request.Identity, req *request.SendMessageRequest) (*model.Message, bool, error) {
	return &model.Message{Uuid: 1, ConversationId: conv.Uuid, SendId: sender.UserId, Content: req.Content, SendAt: time.Now().UnixMilli()}, false, nil
}

type stubReadService struct{}

func (stubReadService) MarkRead(context.Context, string, string, int64) (bool, error) { return true, nil }
func (stubReadService) UnreadCount(context.Context, string, string) (int64, error)     { return 3, nil }
func (stubReadService) UnreadCountsForUser(context.Context, string) ([]respond.UnreadRespond, error) {
	return []respond.UnreadRespond{}, nil
}

type stubAuthService struct{}

func (stubAuthService) RefreshToken(context.Context, string) (*respond.RefreshTokenRespond, error) {
	return &respond.RefreshTokenRespond{AccessToken: "new"}, nil
}

type stubBookingService struct{}

func (stubBookingService) Handle(context.Context, booking.Event) error { return nil }

type envelope struct {
	Code int             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func mustJSON(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func doReq(t *testing.T, client *http.Client, method, url string, body io.Reader, authHeader string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request %s %s: %v", method, url, err)
	}
	return resp
}

func readEnvelope(t *testing.T, path string, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s status=%d", path, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s decode: %v", path, err)
	}
	return env
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwt.Init("test-secret", 15, 168)

	staticDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(staticDir, "hello.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	convs := stubConversationService{}
	msgs := stubMessageService{}
	broker := chat.NewChannelBroker()
	hub := chat.NewHub(chat.NewRegistry(), convs, msgs, broker)
	broker.Start(hub.Deliver)
	t.Cleanup(broker.Close)

	svcs := &service.Services{
		Conversation: convs,
		Message:      msgs,
		ReadState:    stubReadService{},
		Auth:         stubAuthService{},
		Booking:      stubBookingService{},
		Hub:          hub,
	}
	conf := &config.Config{}
	conf.StaticSrcConfig = config.StaticSrcConfig{StaticFilePath: staticDir, PublicURL: "/static/files"}

	server := httptest.NewServer(https_server.Init(handler.NewHandlers(svcs, 16), conf))
	t.Cleanup(server.Close)

	accessToken, err := jwt.GenerateAccessToken("U_TEST", "parent", "Wang Ma")
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	return server, accessToken
}

func TestHTTPEndpoints_Smoke(t *testing.T) {
	server, accessToken := newTestServer(t)
	client := &http.Client{Timeout: 5 * time.Second}
	authHeader := "Bearer " + accessToken

	// ===== 公共接口 =====
	env := readEnvelope(t, "/auth/refresh", doReq(t, client, http.MethodPost, server.URL+"/auth/refresh",
		mustJSON(t, map[string]any{"refresh_token": "r"}), ""))
	if env.Code != errorx.CodeSuccess {
		t.Fatalf("/auth/refresh code=%d", env.Code)
	}

	resp := doReq(t, client, http.MethodGet, server.URL+"/static/files/hello.txt", nil, "")
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "hi" {
		t.Fatalf("static file status=%d body=%q", resp.StatusCode, body)
	}

	// ===== 需要鉴权 =====
	resp = doReq(t, client, http.MethodGet, server.URL+"/conversation/list", nil, "")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token status=%d", resp.StatusCode)
	}
	resp = doReq(t, client, http.MethodGet, server.URL+"/conversation/list", nil, "Bearer garbage")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status=%d", resp.StatusCode)
	}

	env = readEnvelope(t, "/conversation/create", doReq(t, client, http.MethodPost, server.URL+"/conversation/create",
		mustJSON(t, map[string]any{"target_id": "T1"}), authHeader))
	var conv respond.ConversationRespond
	if err := json.Unmarshal(env.Data, &conv); err != nil || env.Code != errorx.CodeSuccess {
		t.Fatalf("/conversation/create code=%d err=%v", env.Code, err)
	}
	if conv.ParentId != "U_TEST" || conv.TeacherId != "T1" {
		t.Fatalf("identity not taken from token: %+v", conv)
	}

	env = readEnvelope(t, "/conversation/create", doReq(t, client, http.MethodPost, server.URL+"/conversation/create",
		mustJSON(t, map[string]any{}), authHeader))
	if env.Code != errorx.CodeInvalidParam {
		t.Fatalf("missing target_id code=%d", env.Code)
	}

	for path, want := range map[string]int{
		"/conversation/list":                      errorx.CodeSuccess,
		"/conversation/get?conversation_id=C_TEST": errorx.CodeSuccess,
		"/conversation/get?conversation_id=nope":   errorx.CodeNotFound,
		"/conversation/get":                        errorx.CodeInvalidParam,
		"/message/page?conversation_id=C_TEST":     errorx.CodeSuccess,
		"/read/unread?conversation_id=C_TEST":      errorx.CodeSuccess,
		"/read/unreadAll":                         errorx.CodeSuccess,
	} {
		env = readEnvelope(t, path, doReq(t, client, http.MethodGet, server.URL+path, nil, authHeader))
		if env.Code != want {
			t.Errorf("%s code=%d want %d", path, env.Code, want)
		}
	}

	env = readEnvelope(t, "/read/mark", doReq(t, client, http.MethodPost, server.URL+"/read/mark",
		mustJSON(t, map[string]any{"conversation_id": "C_TEST", "message_id": "42"}), authHeader))
	var mark respond.MarkReadRespond
	if err := json.Unmarshal(env.Data, &mark); err != nil || !mark.Advanced {
		t.Fatalf("/read/mark code=%d data=%s", env.Code, env.Data)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("conversation_id", "C_TEST")
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = fw.Write([]byte("homework"))
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/message/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", authHeader)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	env = readEnvelope(t, "/message/upload", resp)
	var att respond.AttachmentRespond
	if err := json.Unmarshal(env.Data, &att); err != nil || att.FileName != "notes.txt" {
		t.Fatalf("/message/upload code=%d data=%s", env.Code, env.Data)
	}
}

func TestWebSocketEndpoint_Smoke(t *testing.T) {
	server, accessToken := newTestServer(t)
	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/wss"

	if _, resp, err := websocket.DefaultDialer.Dial(base, nil); err == nil {
		t.Fatal("dial without token should fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token: %v", err)
	}

	ws, _, err := websocket.DefaultDialer.Dial(base+"?token="+accessToken, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer ws.Close()

	roundTrip := func(frame map[string]any) respond.WsReply {
		t.Helper()
		if err := ws.WriteJSON(frame); err != nil {
			t.Fatal(err)
		}
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var reply respond.WsReply
		if err := ws.ReadJSON(&reply); err != nil {
			t.Fatal(err)
		}
		return reply
	}

	if r := roundTrip(map[string]any{"action": "ping", "request_id": "1"}); r.Type != respond.WsTypePong || r.RequestId != "1" {
		t.Fatalf("ping reply: %+v", r)
	}
	if r := roundTrip(map[string]any{"action": "join", "request_id": "2", "conversation_id": "C_TEST"}); r.Type != respond.WsTypeAck {
		t.Fatalf("join reply: %+v", r)
	}
	r := roundTrip(map[string]any{"action": "send_message", "request_id": "3", "conversation_id": "C_TEST", "content": "hi"})
	if r.Type != respond.WsTypeAck || r.RequestId != "3" {
		t.Fatalf("send reply: %+v", r)
	}
}
