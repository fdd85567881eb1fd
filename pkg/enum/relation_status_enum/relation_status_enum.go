package relation_status_enum

// 教学关系状态，由课程预约事件驱动
const (
	Pending = iota // 有待确认的预约
	Active         // 有进行中/未来的课程
	Ended          // 所有课程已结束或取消
)
