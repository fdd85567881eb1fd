// Package chat 实现了聊天系统的核心服务层
// conn_manager.go
// 核心职责：WebSocket 连接生命周期管理
// 1. 建立 WebSocket 连接 (Upgrade)
// 2. 封装 UserConn，管理读写协程 (Read/Write Loop)
// 3. 读协程顺序处理上行帧并交给 Hub，写协程负责下行帧与心跳
package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/pkg/constants"
	"tutor_chat_server/pkg/errorx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 1 << 20
	frameTimeout   = 15 * time.Second
	closeSlowQueue = 4008
)

var errConnClosed = errors.New("connection closed")

// upgrader 前后端分离部署时浏览器 Origin 与服务端不同，放行跨域
var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UserConn 一条 WebSocket 连接
type UserConn struct {
	id    string
	ident request.Identity
	ws    *websocket.Conn
	hub   *Hub

	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

// newUserConn bufferSize 为下行缓冲区大小
func newUserConn(ws *websocket.Conn, ident request.Identity, hub *Hub, bufferSize int) *UserConn {
	if bufferSize <= 0 {
		bufferSize = constants.SEND_BUFFER_SIZE
	}
	return &UserConn{
		id:     uuid.NewString(),
		ident:  ident,
		ws:     ws,
		hub:    hub,
		send:   make(chan []byte, bufferSize),
		closed: make(chan struct{}),
	}
}

func (c *UserConn) ID() string     { return c.id }
func (c *UserConn) UserID() string { return c.ident.UserId }

// Send 非阻塞入队；缓冲区满说明对端消费过慢，断开连接，客户端重连后通过分页补齐
func (c *UserConn) Send(payload []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return errConnClosed
	default:
		zap.L().Warn("下行缓冲区已满，断开慢连接", zap.String("conn_id", c.id), zap.String("user_id", c.ident.UserId))
		go c.Close(closeSlowQueue, "send buffer full")
		return errorx.New(errorx.CodeServerBusy, "下行缓冲区已满")
	}
}

// Close 可重复调用
func (c *UserConn) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}

// ServeWs 升级连接并阻塞到连接结束
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, ident request.Identity, bufferSize int) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		zap.L().Warn("ws 升级失败", zap.String("user_id", ident.UserId), zap.Error(err))
		return
	}
	c := newUserConn(ws, ident, h, bufferSize)
	h.OnConnect(c, ident)
	defer func() {
		h.OnDisconnect(c.id)
		c.Close(websocket.CloseNormalClosure, "session closed")
	}()

	go c.writeLoop()
	c.readLoop(r.Context())
}

func (c *UserConn) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("ws 读取结束", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.handleFrame(ctx, data)
	}
}

func (c *UserConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				zap.L().Debug("ws 写入失败", zap.String("conn_id", c.id), zap.Error(err))
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

// handleFrame 同一连接的帧按到达顺序处理
func (c *UserConn) handleFrame(parent context.Context, data []byte) {
	frame, err := request.ParseWsFrame(data)
	if err != nil {
		_ = c.Send(errorReply("", errorx.CodeInvalidParam, "无法解析的消息帧"))
		return
	}
	ctx, cancel := context.WithTimeout(parent, frameTimeout)
	defer cancel()

	switch frame.Action {
	case request.WsActionPing:
		_ = c.Send(pongReply(frame.RequestId))

	case request.WsActionJoin:
		c.reply(frame.RequestId, nil, c.hub.Join(ctx, c.id, frame.ConversationId))

	case request.WsActionLeave:
		c.hub.Leave(c.id, frame.ConversationId)
		c.reply(frame.RequestId, nil, nil)

	case request.WsActionSendMessage:
		msg, err := c.hub.SendMessage(ctx, c.id, &request.SendMessageRequest{
			ConversationId: frame.ConversationId,
			Content:        frame.Content,
			Attachments:    frame.Attachments,
			ClientMsgId:    frame.ClientMsgId,
		})
		if err != nil {
			c.reply(frame.RequestId, nil, err)
			return
		}
		c.reply(frame.RequestId, msg, nil)

	case request.WsActionTypingStart:
		c.reply(frame.RequestId, nil, c.hub.TypingStart(ctx, c.id, frame.ConversationId))

	case request.WsActionTypingStop:
		c.reply(frame.RequestId, nil, c.hub.TypingStop(ctx, c.id, frame.ConversationId))

	default:
		_ = c.Send(errorReply(frame.RequestId, errorx.CodeInvalidParam, "未知的 action: "+frame.Action))
	}
}

func (c *UserConn) reply(requestId string, data any, err error) {
	if err == nil {
		_ = c.Send(ackReply(requestId, data))
		return
	}
	var codeErr *errorx.CodeError
	if !errors.As(err, &codeErr) {
		zap.L().Error("处理 ws 请求失败", zap.String("conn_id", c.id), zap.Error(err))
		codeErr = errorx.ErrServerBusy
	}
	_ = c.Send(errorReply(requestId, codeErr.Code, codeErr.Msg))
}
