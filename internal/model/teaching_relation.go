package model

import (
	"gorm.io/gorm"
)

// TeachingRelation 教学关系
// 老师与家长（及学生）之间存在过预约即建立，决定老师能否主动发起会话
type TeachingRelation struct {
	gorm.Model

	TeacherId string `gorm:"column:teacher_id;type:varchar(64);not null;uniqueIndex:idx_relation_pair,priority:1;comment:老师id"`
	ParentId  string `gorm:"column:parent_id;type:varchar(64);not null;uniqueIndex:idx_relation_pair,priority:2;comment:家长id，可为空"`
	StudentId string `gorm:"column:student_id;type:varchar(64);not null;uniqueIndex:idx_relation_pair,priority:3;comment:学生id"`

	// Status 参见 pkg/enum/relation_status_enum
	Status int8 `gorm:"column:status;not null;comment:状态，0.待确认，1.进行中，2.已结束"`
}

// TableName 指定表名
func (TeachingRelation) TableName() string {
	return "teaching_relation"
}
