package repository

import (
	"fmt"

	"github.com/user/mediarec/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 初始化数据库连接
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	// 设置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	// 交互日志与偏好权重必须可持久化，媒体快照用于重启重建
	if err := db.AutoMigrate(
		&model.UserInteraction{},
		&model.PreferenceWeight{},
		&model.MediaRecord{},
	); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

// Repositories 仓库集合
type Repositories struct {
	DB          *gorm.DB
	Media       *MediaRepository
	Interaction *InteractionRepository
	Preference  *PreferenceRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Media:       NewMediaRepository(db),
		Interaction: NewInteractionRepository(db),
		Preference:  NewPreferenceRepository(db),
	}
}
