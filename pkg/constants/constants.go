package constants

const (
	CHANNEL_SIZE     = 1024     // broker 转发通道大小
	SEND_BUFFER_SIZE = 256      // 单连接下行缓冲
	FILE_MAX_SIZE    = 32 << 20 // 上传附件最大大小
	REDIS_TIMEOUT    = 1        // redis timeout (分钟)
)

// Redis key 前缀
const (
	CONVERSATION_LIST_KEY         = "conversation_list_"         // + userId
	CONVERSATION_LIST_VERSION_KEY = "conversation_list_version:" // + userId
	IDEMPOTENCY_KEY               = "msg_idem_"                  // + conversationId_sendId_clientMsgId
	USER_TOKEN_KEY                = "user_token:"                // + userId
)
