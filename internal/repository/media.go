package repository

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/user/mediarec/internal/model"
	"gorm.io/gorm"
)

type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Append 持久化一条媒体快照（目录只追加，重复摄入产生新行）
func (r *MediaRepository) Append(item *model.MediaItem, embedding []float32) error {
	directorsJSON, _ := json.Marshal(item.Directors)
	actorsJSON, _ := json.Marshal(item.Actors)

	var vec *pgvector.Vector
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vec = &v
	}

	return r.db.Create(&model.MediaRecord{
		MediaID:     item.ID,
		Title:       item.Title,
		Type:        item.Type,
		Genres:      pq.StringArray(item.Genres),
		Directors:   string(directorsJSON),
		Actors:      string(actorsJSON),
		Year:        item.Year,
		Rating:      item.Rating,
		Album:       item.Album,
		MusicGenre:  item.MusicGenre,
		Description: item.Description,
		Embedding:   vec,
		UpdatedAt:   time.Now(),
	}).Error
}

// ListAll 按插入顺序读取全部快照（启动时重建目录用）
func (r *MediaRepository) ListAll() ([]*model.MediaRecord, error) {
	var records []*model.MediaRecord
	err := r.db.Order("id ASC").Find(&records).Error
	return records, err
}
