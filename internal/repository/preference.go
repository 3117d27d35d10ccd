package repository

import (
	"errors"
	"time"

	"github.com/user/mediarec/internal/model"
	"gorm.io/gorm"
)

// 偏好权重下限，与内存侧保持一致
const weightFloor = 0.1

type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// ApplyDelta 在事务内对 (user, 维度, 取值) 权重做读-改-写，
// 首次出现时惰性建行，权重始终不低于 0.1
func (r *PreferenceRepository) ApplyDelta(userID, prefType, prefValue string, delta float64) (float64, error) {
	var final float64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var row model.PreferenceWeight
		err := tx.Where("user_id = ? AND preference_type = ? AND preference_value = ?",
			userID, prefType, prefValue).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			final = max(weightFloor, weightFloor+delta)
			return tx.Create(&model.PreferenceWeight{
				UserID:          userID,
				PreferenceType:  prefType,
				PreferenceValue: prefValue,
				Weight:          final,
				UpdatedAt:       time.Now(),
			}).Error
		}
		if err != nil {
			return err
		}
		final = max(weightFloor, row.Weight+delta)
		return tx.Model(&model.PreferenceWeight{}).
			Where("id = ?", row.ID).
			Updates(map[string]interface{}{
				"weight":     final,
				"updated_at": time.Now(),
			}).Error
	})
	return final, err
}

// ListAll 获取全部偏好权重（启动时重建内存镜像）
func (r *PreferenceRepository) ListAll() ([]*model.PreferenceWeight, error) {
	var rows []*model.PreferenceWeight
	err := r.db.Find(&rows).Error
	return rows, err
}
