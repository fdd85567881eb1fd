package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"tutor_chat_server/internal/config"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init 初始化雪花算法节点
// 应在程序启动时调用一次
func Init() {
	nodeOnce.Do(func() {
		machineID := config.GetConfig().SnowflakeConfig.MachineID
		if machineID < 0 || machineID > 1023 {
			machineID = 1 // 默认节点 ID
			zap.L().Warn("MachineID 配置非法，使用默认值 1")
		}
		var err error
		node, err = snowflake.NewNode(machineID)
		if err != nil {
			zap.L().Fatal("雪花算法节点初始化失败", zap.Error(err))
		}
		zap.L().Info("雪花算法节点已初始化", zap.Int64("machineID", machineID))
	})
}

// GenerateID 生成雪花 ID (int64)，消息 uuid 使用
// 同节点单调递增，跨节点按时间近似有序
func GenerateID() int64 {
	Init()
	return node.Generate().Int64()
}
