package repository

import (
	"time"

	"github.com/user/mediarec/internal/model"
	"gorm.io/gorm"
)

type InteractionRepository struct {
	db *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Append 追加一条交互日志（日志只增不改）
func (r *InteractionRepository) Append(it *model.UserInteraction) error {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	return r.db.Create(it).Error
}

// ListByUser 获取用户最近的交互记录
func (r *InteractionRepository) ListByUser(userID string, limit int) ([]*model.UserInteraction, error) {
	var interactions []*model.UserInteraction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&interactions).Error
	return interactions, err
}

// CountByUser 统计用户交互数量
func (r *InteractionRepository) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.UserInteraction{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
