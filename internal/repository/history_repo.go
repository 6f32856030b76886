package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fyerfyer/arch-QA-system/internal/models"
)

// HistoryRepository 会话与问答历史仓储
type HistoryRepository interface {
	// SaveSession 创建或更新会话
	SaveSession(session *models.ExplorerSession) error

	// GetSession 获取会话，不存在时返回 models.ErrSessionNotFound
	GetSession(id string) (*models.ExplorerSession, error)

	// DeleteSession 删除会话及其问答记录
	DeleteSession(id string) error

	// CreateRecord 保存一次问答并刷新会话更新时间
	CreateRecord(record *models.QARecord) error

	// ListRecords 按时间顺序分页列出会话的问答记录
	ListRecords(sessionID string, offset, limit int) ([]*models.QARecord, int64, error)

	// WithContext 创建带有上下文的仓储
	WithContext(ctx context.Context) HistoryRepository
}

type historyRepo struct {
	db *gorm.DB
}

// NewHistoryRepository 创建历史仓储
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepo{db: db}
}

// WithContext 创建带有上下文的仓储
func (r *historyRepo) WithContext(ctx context.Context) HistoryRepository {
	return &historyRepo{db: r.db.WithContext(ctx)}
}

// SaveSession 创建或更新会话
func (r *historyRepo) SaveSession(session *models.ExplorerSession) error {
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	return r.db.Save(session).Error
}

// GetSession 获取会话
func (r *historyRepo) GetSession(id string) (*models.ExplorerSession, error) {
	var session models.ExplorerSession
	err := r.db.Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession 删除会话及其问答记录
func (r *historyRepo) DeleteSession(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.QARecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.ExplorerSession{}).Error
	})
}

// CreateRecord 保存一次问答
func (r *historyRepo) CreateRecord(record *models.QARecord) error {
	if record.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return tx.Model(&models.ExplorerSession{}).
			Where("id = ?", record.SessionID).
			Update("updated_at", time.Now()).Error
	})
}

// ListRecords 列出会话的问答记录
func (r *historyRepo) ListRecords(sessionID string, offset, limit int) ([]*models.QARecord, int64, error) {
	var (
		records []*models.QARecord
		total   int64
	)

	query := r.db.Model(&models.QARecord{}).Where("session_id = ?", sessionID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = -1
	}

	err := query.Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
