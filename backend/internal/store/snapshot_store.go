package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/sync/singleflight"
)

// SnapshotStore 把每次提交的全量快照归档到 mysql
// 引擎是内存权威，这里是外部持久化协作者：事件总线订阅者逐条写入
type SnapshotStore struct {
	db *sql.DB
	sf singleflight.Group
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) SaveDocumentSnapshot(ctx context.Context, documentID string, revision uint64, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_snapshots (document_id, revision, content)
		VALUES (?, ?, ?)`,
		documentID,
		revision,
		content,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		// 1062: 重复键。同一 (document_id, revision) 重放视为已落盘
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil
		}
		return err
	}
	return nil
}

// LoadLatestSnapshot 读某文档的最新快照；singleflight 合并同文档的并发回源，
// 避免冷启动时一群连接同时打到 mysql
func (s *SnapshotStore) LoadLatestSnapshot(ctx context.Context, documentID string) (string, uint64, error) {
	type snap struct {
		content  string
		revision uint64
	}
	v, err, _ := s.sf.Do(documentID, func() (interface{}, error) {
		var out snap
		err := s.db.QueryRowContext(ctx,
			`SELECT content, revision FROM document_snapshots
			WHERE document_id = ? ORDER BY revision DESC LIMIT 1`,
			documentID,
		).Scan(&out.content, &out.revision)
		return out, err
	})
	if err != nil {
		return "", 0, err
	}
	out := v.(snap)
	return out.content, out.revision, nil
}
