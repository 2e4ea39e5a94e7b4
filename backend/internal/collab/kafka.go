package collab

import "time"

// SessionOpEvent 投给 Kafka 的已应用操作事件，供其他实例/下游消费
// 以 DocumentID 做分区 key，同一文档的事件保持有序
type SessionOpEvent struct {
	EventType  string    `json:"eventType"` // 固定 "OP_APPLIED"
	SessionID  string    `json:"sessionId"`
	DocumentID string    `json:"documentId"`
	Revision   uint64    `json:"revision"`
	UserID     string    `json:"userId"`
	Op         Operation `json:"op"`
	AppliedAt  time.Time `json:"appliedAt"`
}
