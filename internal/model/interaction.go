package model

import (
	"time"
)

// UserInteraction 用户行为日志（仅追加，持久化后不再修改或删除）
type UserInteraction struct {
	ID        int       `json:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	UserID    string    `json:"user_id" db:"user_id" gorm:"index"`
	MediaID   string    `json:"media_id" db:"media_id"`
	Type      string    `json:"type" db:"type"` // view, like, dislike, download 等
	Value     float64   `json:"value" db:"value"`
	Metadata  string    `json:"metadata" db:"metadata"` // JSON
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"index"`
}

// TableName 指定表名
func (UserInteraction) TableName() string {
	return "user_interactions"
}

// PreferenceWeight 用户偏好权重，按 (user_id, 维度, 取值) 唯一
// 权重下限 0.1，由交互日志推导，可通过重放日志恢复
type PreferenceWeight struct {
	ID              int       `json:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	UserID          string    `json:"user_id" db:"user_id" gorm:"uniqueIndex:idx_user_pref"`
	PreferenceType  string    `json:"preference_type" db:"preference_type" gorm:"uniqueIndex:idx_user_pref"` // genre, director, actor, media_type, music_album, music_genre
	PreferenceValue string    `json:"preference_value" db:"preference_value" gorm:"uniqueIndex:idx_user_pref"`
	Weight          float64   `json:"weight" db:"weight"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TableName 指定表名
func (PreferenceWeight) TableName() string {
	return "user_preferences"
}
