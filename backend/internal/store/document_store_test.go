package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const testDSN = "root:root@tcp(127.0.0.1:3306)/collab_test?charset=utf8mb4&parseTime=True&loc=Local"

func newTestGorm(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitMySQL(testDSN)
	if err != nil {
		t.Skipf("skip: mysql not available: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		t.Skipf("skip: mysql not available: %v", err)
	}
	return db
}

func TestDocumentStore_CreateLookupArchive(t *testing.T) {
	db := newTestGorm(t)
	s, err := NewDocumentStore(db)
	if err != nil {
		t.Fatalf("NewDocumentStore() error = %v", err)
	}
	ctx := context.Background()
	title := "doc-" + uuid.NewString()

	if _, err := s.GetDocumentID(ctx, title); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetDocumentID() error = %v, want gorm.ErrRecordNotFound", err)
	}

	id, err := s.CreateDocument(ctx, "alice", title)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	t.Cleanup(func() {
		db.Where("id = ?", id).Delete(&DocumentRecord{})
	})

	got, err := s.GetDocumentID(ctx, title)
	if err != nil {
		t.Fatalf("GetDocumentID() error = %v", err)
	}
	if got != id {
		t.Fatalf("GetDocumentID() = %q, want %q", got, id)
	}

	if err := s.ArchiveDocument(ctx, id); err != nil {
		t.Fatalf("ArchiveDocument() error = %v", err)
	}
	var rec DocumentRecord
	if err := db.First(&rec, "id = ?", id).Error; err != nil {
		t.Fatalf("First() error = %v", err)
	}
	if !rec.Archived {
		t.Fatalf("Archived = false, want true")
	}
}
