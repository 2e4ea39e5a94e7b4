package cache

import "fmt"

// 键语义：
// - sessionsIdxKey:        有在线成员的会话索引（Set<sessionID>）
// - memberKey(sessionID):  会话在线成员（ZSet<userID, expireAtUnix>，score=expireAt）
// - namesKey(sessionID):   会话内 userID→displayName 映射（Hash）
// - cursorKey(sessionID, userID): 光标 JSON（String，带 TTL）

const (
	sessionsIdxKey = "presence:sessions"            // Set<sessionID>
	keyMembersFmt  = "presence:session:{%s}"        // ZSet<userID, expireAtUnix>
	keyNamesFmt    = "presence:session:names:{%s}"  // Hash<userID -> name>
	keyCursorFmt   = "presence:cursor:{%s}:%s"      // String(JSON)
)

func memberKey(sessionID string) string { return fmt.Sprintf(keyMembersFmt, sessionID) }
func namesKey(sessionID string) string  { return fmt.Sprintf(keyNamesFmt, sessionID) }
func cursorKey(sessionID, userID string) string {
	return fmt.Sprintf(keyCursorFmt, sessionID, userID)
}
