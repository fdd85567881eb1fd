package message

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"tutor_chat_server/internal/dao/database/repository"
	"tutor_chat_server/pkg/errorx"
)

// encodeCursor 游标对客户端不透明
func encodeCursor(k repository.MessageKey) string {
	raw := strconv.FormatInt(k.SendAt, 10) + ":" + strconv.FormatInt(k.Uuid, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*repository.MessageKey, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeValidationFailed, "游标格式错误")
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, errorx.New(errorx.CodeValidationFailed, "游标格式错误")
	}
	sendAt, err1 := strconv.ParseInt(parts[0], 10, 64)
	uuid, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || sendAt < 0 || uuid <= 0 {
		return nil, errorx.New(errorx.CodeValidationFailed, fmt.Sprintf("游标格式错误: %q", raw))
	}
	return &repository.MessageKey{SendAt: sendAt, Uuid: uuid}, nil
}
