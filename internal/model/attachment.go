package model

import (
	"gorm.io/gorm"
)

// Attachment 消息附件
// 只属于一条消息，随消息在同一事务写入
type Attachment struct {
	gorm.Model

	MessageUuid int64  `gorm:"column:message_uuid;type:bigint;not null;index;comment:所属消息uuid"`
	Seq         int    `gorm:"column:seq;not null;comment:顺序"`
	FileName    string `gorm:"column:file_name;type:varchar(255);not null;comment:文件名"`
	FileUrl     string `gorm:"column:file_url;type:varchar(512);not null;comment:文件url"`
	FileSize    int64  `gorm:"column:file_size;not null;comment:文件大小(字节)"`
	FileType    string `gorm:"column:file_type;type:varchar(100);not null;comment:文件类型"`
	UploadedBy  string `gorm:"column:uploaded_by;type:varchar(64);not null;comment:上传者id"`
}

// TableName 指定表名
func (Attachment) TableName() string {
	return "attachment"
}
