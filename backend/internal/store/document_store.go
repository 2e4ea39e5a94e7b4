package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentRecord 文档元数据表
type DocumentRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Title     string    `gorm:"size:255;uniqueIndex"`
	OwnerID   string    `gorm:"size:64;index"`
	Archived  bool      `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DocumentRecord) TableName() string { return "documents" }

type DocumentStore struct{ db *gorm.DB }

func NewDocumentStore(db *gorm.DB) (*DocumentStore, error) {
	if err := db.AutoMigrate(&DocumentRecord{}); err != nil {
		return nil, err
	}
	return &DocumentStore{db: db}, nil
}

func (s *DocumentStore) GetDocumentID(ctx context.Context, title string) (string, error) {
	var rec DocumentRecord
	// gorm.ErrRecordNotFound
	if err := s.db.WithContext(ctx).Select("id").Where("title = ?", title).First(&rec).Error; err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *DocumentStore) CreateDocument(ctx context.Context, ownerID, title string) (string, error) {
	rec := DocumentRecord{
		ID:      uuid.NewString(),
		Title:   title,
		OwnerID: ownerID,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *DocumentStore) ArchiveDocument(ctx context.Context, documentID string) error {
	return s.db.WithContext(ctx).Model(&DocumentRecord{}).
		Where("id = ?", documentID).
		Update("archived", true).Error
}
