package cache

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func newTestPresence(t *testing.T) (PresenceCache, *redis.Client) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	// 若 Redis 未启动则跳过
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})
	return NewRedisPresence(rdb), rdb
}

func TestPresence_AddAndListMembers(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	if err := p.AddMember(ctx, "s1", "u1", "Alice", 60*time.Second); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := p.AddMember(ctx, "s1", "u2", "Bob", 60*time.Second); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	members, err := p.GetAliveMembers(ctx, "s1")
	if err != nil {
		t.Fatalf("GetAliveMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len(members) = %d, want 2", len(members))
	}
	names := map[string]string{}
	for _, m := range members {
		names[m.UserID] = m.Name
	}
	if names["u1"] != "Alice" || names["u2"] != "Bob" {
		t.Fatalf("members = %v", members)
	}
}

func TestPresence_ExpiredMembersSweptOut(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	// 逻辑 TTL 已过：lua 清理后不应再出现
	if err := p.AddMember(ctx, "s1", "u1", "Alice", -1*time.Second); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := p.AddMember(ctx, "s1", "u2", "Bob", 60*time.Second); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	members, err := p.GetAliveMembers(ctx, "s1")
	if err != nil {
		t.Fatalf("GetAliveMembers() error = %v", err)
	}
	if len(members) != 1 || members[0].UserID != "u2" {
		t.Fatalf("members = %v, want only u2", members)
	}
}

func TestPresence_RemoveMember(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	if err := p.AddMember(ctx, "s1", "u1", "Alice", 60*time.Second); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := p.RemoveMember(ctx, "s1", "u1"); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	members, err := p.GetAliveMembers(ctx, "s1")
	if err != nil {
		t.Fatalf("GetAliveMembers() error = %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("members = %v, want empty", members)
	}
}

func TestPresence_CursorRoundtrip(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	payload := []byte(`{"userId":"u1","position":7}`)
	if err := p.SetCursor(ctx, "s1", "u1", payload, 60*time.Second); err != nil {
		t.Fatalf("SetCursor() error = %v", err)
	}
	got, err := p.GetCursor(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("GetCursor() error = %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("GetCursor() = %s, want %s", got, payload)
	}
}

func TestPresence_GetSessions(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	// 会话 ID 是调用方给的任意字符串，含冒号/关键字也得原样回来
	weird := "s1:names:x"
	if err := p.AddMember(ctx, weird, "u1", "Alice", 60*time.Second); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := p.AddMember(ctx, "s2", "u2", "Bob", 60*time.Second); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	sessions, err := p.GetSessions(ctx)
	if err != nil {
		t.Fatalf("GetSessions() error = %v", err)
	}
	found := map[string]bool{}
	for _, s := range sessions {
		found[s] = true
	}
	if len(sessions) != 2 || !found[weird] || !found["s2"] {
		t.Fatalf("sessions = %v, want [%q s2]", sessions, weird)
	}

	// 最后一个成员走了，会话要从索引里消失
	if err := p.RemoveMember(ctx, "s2", "u2"); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	sessions, err = p.GetSessions(ctx)
	if err != nil {
		t.Fatalf("GetSessions() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0] != weird {
		t.Fatalf("sessions = %v, want [%q]", sessions, weird)
	}
}
