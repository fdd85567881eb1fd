// Package message 消息存储：校验、持久化、幂等、键集分页、附件上传
package message

import (
	"context"
	"errors"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"tutor_chat_server/internal/dao/database/repository"
	myredis "tutor_chat_server/internal/dao/redis"
	"tutor_chat_server/internal/dto/request"
	"tutor_chat_server/internal/dto/respond"
	"tutor_chat_server/internal/model"
	"tutor_chat_server/pkg/constants"
	"tutor_chat_server/pkg/errorx"
	"tutor_chat_server/pkg/util/snowflake"
)

const (
	maxAttachments   = 10
	maxClientMsgId   = 64
	previewRuneLimit = 50

	// idempotencyPending 幂等键占位值，落库后改写为消息 uuid
	idempotencyPending = "pending"
)

// Authorizer 会话鉴权，由会话服务实现
type Authorizer interface {
	AuthorizeParticipant(ctx context.Context, userId, conversationId string) (*model.Conversation, error)
	AuthorizeReader(ctx context.Context, requester request.Identity, conversationId string) (*model.Conversation, error)
	InvalidateLists(userIds ...string)
}

// Options 来自 chatConfig
type Options struct {
	MaxContentLength  int
	DefaultPageSize   int
	MaxPageSize       int
	IdempotencyWindow time.Duration
	AppendRetries     int
	RetryBackoff      time.Duration
}

// messageService 消息业务逻辑实现
type messageService struct {
	repos   *repository.Repositories
	auth    Authorizer
	storage FileStorage
	cache   myredis.AsyncCacheService
	opts    Options

	now    func() int64
	nextID func() int64
}

// NewMessageService 构造函数，注入所有依赖
func NewMessageService(repos *repository.Repositories, auth Authorizer, storage FileStorage, cacheService myredis.AsyncCacheService, opts Options) *messageService {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = 5000
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.IdempotencyWindow <= 0 {
		opts.IdempotencyWindow = 10 * time.Minute
	}
	if opts.AppendRetries < 0 {
		opts.AppendRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	return &messageService{
		repos:   repos,
		auth:    auth,
		storage: storage,
		cache:   cacheService,
		opts:    opts,
		now:     func() int64 { return time.Now().UnixMilli() },
		nextID:  snowflake.GenerateID,
	}
}

// Append 持久化一条消息，调用方已完成参与者与只读校验
// duplicate 为 true 表示命中幂等键，返回的是原消息，不应再次广播
func (s *messageService) Append(ctx context.Context, conv *model.Conversation, sender request.Identity, req *request.SendMessageRequest) (msg *model.Message, duplicate bool, err error) {
	if err := s.validate(req); err != nil {
		return nil, false, err
	}

	if req.ClientMsgId != "" {
		if orig := s.findDuplicate(ctx, conv.Uuid, sender.UserId, req.ClientMsgId); orig != nil {
			zap.L().Info("命中幂等键，返回原消息",
				zap.String("conversation_id", conv.Uuid),
				zap.String("user_id", sender.UserId),
				zap.String("client_msg_id", req.ClientMsgId),
			)
			return orig, true, nil
		}
		claimed, orig, cerr := s.claim(ctx, conv.Uuid, sender.UserId, req.ClientMsgId)
		if cerr != nil {
			return nil, false, cerr
		}
		if orig != nil {
			return orig, true, nil
		}
		if claimed {
			defer func() {
				if err != nil {
					s.releaseClaim(conv.Uuid, sender.UserId, req.ClientMsgId)
				}
			}()
		}
	}

	err = withRetry(ctx, s.opts.AppendRetries, s.opts.RetryBackoff, func() error {
		var e error
		msg, e = s.appendOnce(ctx, conv.Uuid, sender, req)
		return e
	})
	if err != nil {
		// 并发重投同一幂等键，唯一索引兜底
		if errorx.IsDuplicate(err) && req.ClientMsgId != "" {
			if orig, ferr := s.repos.Message.FindByClientMsgId(ctx, conv.Uuid, sender.UserId, req.ClientMsgId); ferr == nil {
				return orig, true, nil
			}
		}
		if errorx.IsTransient(err) {
			zap.L().Error("消息写入重试后仍失败",
				zap.String("conversation_id", conv.Uuid),
				zap.String("user_id", sender.UserId),
				zap.Error(err),
			)
			return nil, false, errorx.Wrap(err, errorx.CodeTransientStore, errorx.ErrTransientStore.Msg)
		}
		var codeErr *errorx.CodeError
		if !errors.As(err, &codeErr) || errorx.IsStoreFault(err) {
			zap.L().Error("消息写入失败", zap.String("conversation_id", conv.Uuid), zap.Error(err))
			return nil, false, errorx.ErrServerBusy
		}
		return nil, false, err
	}

	s.afterAppend(conv, msg)
	return msg, false, nil
}

// appendOnce 一个事务内写消息、附件并推进会话水位线，要么全成功要么全回滚
func (s *messageService) appendOnce(ctx context.Context, conversationId string, sender request.Identity, req *request.SendMessageRequest) (*model.Message, error) {
	var msg *model.Message
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		conv, err := tx.Conversation.FindByUuidForUpdate(ctx, conversationId)
		if err != nil {
			return err
		}
		// 与 SetReadOnly 并发时以事务内读到的为准
		if !conv.Writable() {
			return errorx.ErrReadOnlyConversation
		}

		key := s.nextKey(conv)
		msg = &model.Message{
			Uuid:           key.Uuid,
			ConversationId: conversationId,
			SendId:         sender.UserId,
			SendName:       sender.Nickname,
			Content:        req.Content,
			SendAt:         key.SendAt,
			Attachments:    make([]model.Attachment, 0, len(req.Attachments)),
		}
		if req.ClientMsgId != "" {
			cid := req.ClientMsgId
			msg.ClientMsgId = &cid
		}
		for i, a := range req.Attachments {
			msg.Attachments = append(msg.Attachments, model.Attachment{
				MessageUuid: key.Uuid,
				Seq:         i,
				FileName:    a.FileName,
				FileUrl:     a.FileUrl,
				FileSize:    a.FileSize,
				FileType:    a.FileType,
				UploadedBy:  sender.UserId,
			})
		}
		if err := tx.Message.Create(ctx, msg); err != nil {
			return err
		}
		return tx.Conversation.AdvanceLastMessage(ctx, conversationId, key, preview(msg))
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// nextKey send_at 不小于会话水位线；同一毫秒内 uuid 倒挂时顺延 1ms
func (s *messageService) nextKey(conv *model.Conversation) repository.MessageKey {
	key := repository.MessageKey{SendAt: s.now(), Uuid: s.nextID()}
	if key.SendAt < conv.LastMessageAt {
		key.SendAt = conv.LastMessageAt
	}
	if key.SendAt == conv.LastMessageAt && key.Uuid <= conv.LastMessageId {
		key.SendAt++
	}
	return key
}

func (s *messageService) afterAppend(conv *model.Conversation, msg *model.Message) {
	if s.cache != nil && msg.ClientMsgId != nil {
		key := idempotencyKey(msg.ConversationId, msg.SendId, *msg.ClientMsgId)
		value := strconv.FormatInt(msg.Uuid, 10)
		window := s.opts.IdempotencyWindow
		s.cache.SubmitTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Minute)
			defer cancel()
			if err := s.cache.Set(ctx, key, value, window); err != nil {
				zap.L().Warn("写入幂等键失败", zap.String("key", key), zap.Error(err))
			}
		})
	}
	if s.auth != nil {
		s.auth.InvalidateLists(conv.Participants()...)
	}
}

// claim 用 SetNX 抢占幂等键，同一 client_msg_id 的并发重投只有一个进入写库
// 抢占失败说明另一请求正在写入：等它落库后返回原消息，超时则让客户端稍后重试
// Redis 不可用时不抢占，由唯一索引兜底
func (s *messageService) claim(ctx context.Context, conversationId, sendId, clientMsgId string) (bool, *model.Message, error) {
	if s.cache == nil {
		return false, nil, nil
	}
	key := idempotencyKey(conversationId, sendId, clientMsgId)
	ok, err := s.cache.SetNX(ctx, key, idempotencyPending, s.opts.IdempotencyWindow)
	if err != nil {
		zap.L().Warn("抢占幂等键失败", zap.String("key", key), zap.Error(err))
		return false, nil, nil
	}
	if ok {
		return true, nil, nil
	}
	for i := 0; i <= s.opts.AppendRetries; i++ {
		timer := time.NewTimer(s.opts.RetryBackoff << i)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, nil, ctx.Err()
		case <-timer.C:
		}
		if orig := s.findDuplicate(ctx, conversationId, sendId, clientMsgId); orig != nil {
			return false, orig, nil
		}
	}
	zap.L().Warn("同一幂等键的消息仍在写入",
		zap.String("conversation_id", conversationId),
		zap.String("user_id", sendId),
		zap.String("client_msg_id", clientMsgId),
	)
	return false, nil, errorx.ErrTransientStore
}

// releaseClaim 写入失败后释放占位，客户端重投时可以重新抢占
func (s *messageService) releaseClaim(conversationId, sendId, clientMsgId string) {
	key := idempotencyKey(conversationId, sendId, clientMsgId)
	ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Minute)
	defer cancel()
	if err := s.cache.Delete(ctx, key); err != nil {
		zap.L().Warn("释放幂等键失败", zap.String("key", key), zap.Error(err))
	}
}

// findDuplicate 先查 Redis，未命中再查库
func (s *messageService) findDuplicate(ctx context.Context, conversationId, sendId, clientMsgId string) *model.Message {
	if s.cache != nil {
		v, err := s.cache.Get(ctx, idempotencyKey(conversationId, sendId, clientMsgId))
		if err != nil {
			zap.L().Warn("读取幂等键失败", zap.String("conversation_id", conversationId), zap.Error(err))
		} else if v != "" {
			if id, perr := strconv.ParseInt(v, 10, 64); perr == nil {
				if msg, ferr := s.repos.Message.FindByUuid(ctx, id); ferr == nil {
					return msg
				}
			}
		}
	}
	msg, err := s.repos.Message.FindByClientMsgId(ctx, conversationId, sendId, clientMsgId)
	if err != nil {
		if !errorx.IsNotFound(err) {
			zap.L().Warn("查询幂等消息失败", zap.String("conversation_id", conversationId), zap.Error(err))
		}
		return nil
	}
	return msg
}

func (s *messageService) validate(req *request.SendMessageRequest) error {
	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.Attachments) == 0 {
		return errorx.New(errorx.CodeValidationFailed, "消息内容不能为空")
	}
	if n := utf8.RuneCountInString(req.Content); n > s.opts.MaxContentLength {
		return errorx.Newf(errorx.CodeValidationFailed, "消息内容过长（%d/%d）", n, s.opts.MaxContentLength)
	}
	if len(req.Attachments) > maxAttachments {
		return errorx.Newf(errorx.CodeValidationFailed, "附件数量不能超过 %d 个", maxAttachments)
	}
	for i, a := range req.Attachments {
		if a.FileName == "" || a.FileUrl == "" || a.FileType == "" || a.FileSize < 0 {
			return errorx.Newf(errorx.CodeValidationFailed, "第 %d 个附件信息不完整", i+1)
		}
	}
	if len(req.ClientMsgId) > maxClientMsgId {
		return errorx.New(errorx.CodeValidationFailed, "client_msg_id 过长")
	}
	return nil
}

// Page 键集分页，新消息在前
func (s *messageService) Page(ctx context.Context, requester request.Identity, req request.PageMessagesRequest) (*respond.PageMessagesRespond, error) {
	if _, err := s.auth.AuthorizeReader(ctx, requester, req.ConversationId); err != nil {
		return nil, err
	}
	before, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	size := s.pageSize(req.PageSize)

	msgs, err := s.repos.Message.PageBefore(ctx, req.ConversationId, before, size+1)
	if err != nil {
		zap.L().Error("分页查询消息失败", zap.String("conversation_id", req.ConversationId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	total, err := s.repos.Message.CountByConversation(ctx, req.ConversationId)
	if err != nil {
		zap.L().Error("统计消息失败", zap.String("conversation_id", req.ConversationId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	rsp := &respond.PageMessagesRespond{Total: total}
	if len(msgs) > size {
		msgs = msgs[:size]
		last := msgs[len(msgs)-1]
		next := encodeCursor(repository.MessageKey{SendAt: last.SendAt, Uuid: last.Uuid})
		rsp.NextCursor = &next
	}
	rsp.Messages = make([]respond.MessageRespond, 0, len(msgs))
	for i := range msgs {
		rsp.Messages = append(rsp.Messages, respond.NewMessageRespond(&msgs[i]))
	}
	return rsp, nil
}

// pageSize 0 取默认值，其余夹在 [1, max]
func (s *messageService) pageSize(n int) int {
	switch {
	case n == 0:
		return s.opts.DefaultPageSize
	case n < 1:
		return 1
	case n > s.opts.MaxPageSize:
		return s.opts.MaxPageSize
	}
	return n
}

// UploadAttachment 只有参与者可以上传，返回的信息用于随后的 send_message
func (s *messageService) UploadAttachment(ctx context.Context, requester request.Identity, conversationId string, fileHeader *multipart.FileHeader) (*respond.AttachmentRespond, error) {
	if _, err := s.auth.AuthorizeParticipant(ctx, requester.UserId, conversationId); err != nil {
		return nil, err
	}
	if fileHeader == nil {
		return nil, errorx.New(errorx.CodeValidationFailed, "未上传文件")
	}
	if fileHeader.Size > constants.FILE_MAX_SIZE {
		return nil, errorx.Newf(errorx.CodeValidationFailed, "文件过大，最大 %d MB", constants.FILE_MAX_SIZE>>20)
	}

	stored, err := s.storage.Save(ctx, fileHeader)
	if err != nil {
		zap.L().Error("保存附件失败",
			zap.String("conversation_id", conversationId),
			zap.String("user_id", requester.UserId),
			zap.Error(err),
		)
		return nil, errorx.ErrServerBusy
	}
	zap.L().Info("附件上传成功",
		zap.String("conversation_id", conversationId),
		zap.String("url", stored.Url),
		zap.Int64("size", stored.Size),
	)
	return &respond.AttachmentRespond{
		FileName: filepath.Base(fileHeader.Filename),
		FileUrl:  stored.Url,
		FileSize: stored.Size,
		FileType: stored.ContentType,
	}, nil
}

func idempotencyKey(conversationId, sendId, clientMsgId string) string {
	return constants.IDEMPOTENCY_KEY + conversationId + "_" + sendId + "_" + clientMsgId
}

// preview 会话列表摘要
func preview(m *model.Message) string {
	text := strings.TrimSpace(m.Content)
	if text == "" && len(m.Attachments) > 0 {
		return "[附件] " + m.Attachments[0].FileName
	}
	if utf8.RuneCountInString(text) > previewRuneLimit {
		r := []rune(text)
		return string(r[:previewRuneLimit]) + "…"
	}
	return text
}
