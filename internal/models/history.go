package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExplorerSession 已建立索引的会话
// 索引本身只在内存中，这里只保存来源和统计信息
type ExplorerSession struct {
	ID        string         `gorm:"primaryKey"`         // 会话ID
	Sources   datatypes.JSON `gorm:"type:json"`          // 来源描述列表
	Documents int            `gorm:"not null;default:0"` // 采集到的文档数
	Chunks    int            `gorm:"not null;default:0"` // 分块数
	Failures  int            `gorm:"not null;default:0"` // 采集失败数
	CreatedAt time.Time      `gorm:"not null"`           // 创建时间
	UpdatedAt time.Time      `gorm:"not null"`           // 最近一次提问时间
}

// BeforeCreate 创建前设置时间
func (s *ExplorerSession) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	return nil
}

// TableName 指定表名
func (ExplorerSession) TableName() string {
	return "explorer_sessions"
}

// QARecord 一次问答记录
type QARecord struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"`
	SessionID string         `gorm:"not null;index"`     // 所属会话ID
	Question  string         `gorm:"type:text;not null"` // 问题
	Answer    string         `gorm:"type:text;not null"` // 回答
	Diagram   string         `gorm:"type:text"`          // 架构图，可为空
	Sources   datatypes.JSON `gorm:"type:json"`          // 检索到的文档来源
	CreatedAt time.Time      `gorm:"not null;index"`     // 创建时间
}

// BeforeCreate 创建前设置时间
func (r *QARecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

// TableName 指定表名
func (QARecord) TableName() string {
	return "qa_records"
}

// SourceRef 回答引用的文档
type SourceRef struct {
	Source string `json:"source"`          // 文件路径、URL或仓库路径
	Title  string `json:"title,omitempty"` // 标题
}
