package model

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// MediaItem 媒体条目（电影/剧集/音乐/动画等）
// 入库后不可变：重复摄入同一 id 会追加新记录，而不是修改旧记录
type MediaItem struct {
	ID          string   `json:"id" binding:"required"`
	Title       string   `json:"title" binding:"required,notblank"`
	Type        string   `json:"type"`
	Genres      []string `json:"genres"`
	Directors   []string `json:"directors"`
	Actors      []string `json:"actors"` // 有序，个性化只取前 3 位主演
	Year        int      `json:"year,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Album       string   `json:"album,omitempty"`       // 音乐专辑
	MusicGenre  string   `json:"music_genre,omitempty"` // 音乐流派
	Description string   `json:"description"`
}

// ScoredItem 带打分的推荐结果
type ScoredItem struct {
	Item       MediaItem `json:"item"`
	Similarity float64   `json:"similarity_score"`
	Rank       int       `json:"rank"`       // 1 起始，按输出顺序
	Confidence string    `json:"confidence"` // high / low，相对查询阈值

	// 个性化重排后补充的字段
	FinalScore           float64 `json:"final_score,omitempty"`
	PersonalizationBonus float64 `json:"personalization_bonus,omitempty"`
	DiversityBonus       float64 `json:"diversity_bonus,omitempty"`
	RatingBonus          float64 `json:"rating_bonus,omitempty"`
	RecencyBonus         float64 `json:"recency_bonus,omitempty"`
}

// MediaRecord 媒体快照持久化行（用于重启后重建目录和索引，重建不在热路径）
type MediaRecord struct {
	ID          int              `json:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	MediaID     string           `json:"media_id" db:"media_id" gorm:"index"`
	Title       string           `json:"title" db:"title"`
	Type        string           `json:"type" db:"type"`
	Genres      pq.StringArray   `json:"genres" db:"genres" gorm:"type:text[]"`
	Directors   string           `json:"directors" db:"directors"` // JSON 数组
	Actors      string           `json:"actors" db:"actors"`       // JSON 数组
	Year        int              `json:"year" db:"year"`
	Rating      float64          `json:"rating" db:"rating"`
	Album       string           `json:"album" db:"album"`
	MusicGenre  string           `json:"music_genre" db:"music_genre"`
	Description string           `json:"description" db:"description"`
	Embedding   *pgvector.Vector `json:"embedding" db:"embedding" gorm:"type:vector(384)"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at" gorm:"index"`
}

// TableName 指定表名
func (MediaRecord) TableName() string {
	return "media_records"
}

// ToItem 快照行还原为媒体条目，JSON 字段解析失败时对应切片为空
func (rec *MediaRecord) ToItem() MediaItem {
	return MediaItem{
		ID:          rec.MediaID,
		Title:       rec.Title,
		Type:        rec.Type,
		Genres:      []string(rec.Genres),
		Directors:   decodeStringList(rec.Directors),
		Actors:      decodeStringList(rec.Actors),
		Year:        rec.Year,
		Rating:      rec.Rating,
		Album:       rec.Album,
		MusicGenre:  rec.MusicGenre,
		Description: rec.Description,
	}
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
