package collab

import "unicode/utf8"

// 修订历史：按文档归档、只追加。提交链路在持会话锁时调用 appendRevision，
// 同一文档的版本号因此严格递增且无间隙

func (e *Engine) appendRevision(rev Revision) {
	e.histMu.Lock()
	e.history[rev.DocumentID] = append(e.history[rev.DocumentID], rev)
	e.histMu.Unlock()
}

// revisionsAfter 返回 after 之后提交的全部修订（按提交顺序）
func (e *Engine) revisionsAfter(documentID string, after uint64) []Revision {
	e.histMu.RLock()
	defer e.histMu.RUnlock()
	revs := e.history[documentID]
	// 版本号从 1 开始且无间隙，直接按下标切
	if after >= uint64(len(revs)) {
		return nil
	}
	out := make([]Revision, len(revs)-int(after))
	copy(out, revs[after:])
	return out
}

// GetRevisionHistory 返回最近 limit 条修订，新的在前；limit <= 0 返回全部
func (e *Engine) GetRevisionHistory(documentID string, limit int) []Revision {
	e.histMu.RLock()
	revs := e.history[documentID]
	if limit <= 0 || limit > len(revs) {
		limit = len(revs)
	}
	out := make([]Revision, limit)
	for i := 0; i < limit; i++ {
		out[i] = revs[len(revs)-1-i]
	}
	e.histMu.RUnlock()
	return out
}

func (e *Engine) GetRevision(documentID string, revision uint64) (*Revision, error) {
	e.histMu.RLock()
	defer e.histMu.RUnlock()
	revs := e.history[documentID]
	if revision == 0 || revision > uint64(len(revs)) {
		return nil, ErrRevisionNotFound
	}
	rev := revs[revision-1]
	return &rev, nil
}

// RevertToRevision 回滚到目标版本：先整段删除当前内容，再插入目标快照，
// 两次都走正常提交链路。历史只向前走，回滚本身就是两条新修订，不重写过去
func (e *Engine) RevertToRevision(sessionID string, revision uint64, userID string) error {
	st := e.lookup(sessionID)
	if st == nil {
		return ErrSessionNotFound
	}
	st.mu.Lock()
	documentID := st.s.DocumentID
	st.mu.Unlock()

	target, err := e.GetRevision(documentID, revision)
	if err != nil {
		return err
	}

	content, current, err := e.Snapshot(sessionID)
	if err != nil {
		return err
	}

	if _, err := e.ApplyOperation(OperationRequest{
		SessionID: sessionID,
		UserID:    userID,
		Type:      OpDelete,
		Position:  0,
		Length:    utf8.RuneCountInString(content),
		Revision:  current,
	}); err != nil {
		return err
	}

	if target.ContentSnapshot != "" {
		if _, err := e.ApplyOperation(OperationRequest{
			SessionID: sessionID,
			UserID:    userID,
			Type:      OpInsert,
			Position:  0,
			Content:   target.ContentSnapshot,
			Revision:  current + 1,
		}); err != nil {
			return err
		}
	}
	return nil
}
