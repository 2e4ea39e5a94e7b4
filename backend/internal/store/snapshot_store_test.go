package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newTestSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	db := newTestGorm(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	_, err = sqlDB.Exec(`CREATE TABLE IF NOT EXISTS document_snapshots (
		document_id varchar(64) NOT NULL,
		revision bigint unsigned NOT NULL,
		content longtext,
		created_at timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (document_id, revision)
	)`)
	if err != nil {
		t.Fatalf("create table error = %v", err)
	}
	return NewSnapshotStore(sqlDB)
}

func TestSnapshotStore_SaveAndLoadLatest(t *testing.T) {
	s := newTestSnapshotStore(t)
	ctx := context.Background()
	docID := uuid.NewString()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(),
			`DELETE FROM document_snapshots WHERE document_id = ?`, docID)
	})

	if _, _, err := s.LoadLatestSnapshot(ctx, docID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("LoadLatestSnapshot() error = %v, want sql.ErrNoRows", err)
	}

	if err := s.SaveDocumentSnapshot(ctx, docID, 1, "v1"); err != nil {
		t.Fatalf("SaveDocumentSnapshot() error = %v", err)
	}
	if err := s.SaveDocumentSnapshot(ctx, docID, 2, "v1 v2"); err != nil {
		t.Fatalf("SaveDocumentSnapshot() error = %v", err)
	}

	content, revision, err := s.LoadLatestSnapshot(ctx, docID)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot() error = %v", err)
	}
	if content != "v1 v2" || revision != 2 {
		t.Fatalf("LoadLatestSnapshot() = (%q, %d), want (%q, 2)", content, revision, "v1 v2")
	}
}

func TestSnapshotStore_DuplicateRevisionTolerated(t *testing.T) {
	s := newTestSnapshotStore(t)
	ctx := context.Background()
	docID := uuid.NewString()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(),
			`DELETE FROM document_snapshots WHERE document_id = ?`, docID)
	})

	if err := s.SaveDocumentSnapshot(ctx, docID, 1, "v1"); err != nil {
		t.Fatalf("SaveDocumentSnapshot() error = %v", err)
	}
	// 同一 (document_id, revision) 重放：视为已落盘，不报错
	if err := s.SaveDocumentSnapshot(ctx, docID, 1, "v1"); err != nil {
		t.Fatalf("SaveDocumentSnapshot() replay error = %v", err)
	}

	content, revision, err := s.LoadLatestSnapshot(ctx, docID)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot() error = %v", err)
	}
	if content != "v1" || revision != 1 {
		t.Fatalf("LoadLatestSnapshot() = (%q, %d), want (%q, 1)", content, revision, "v1")
	}
}
