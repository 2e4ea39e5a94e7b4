package cache

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// PresenceCache 把会话在线状态/光标镜像到 redis，供多实例共享
// 引擎内的状态才是权威，这里只是展示层用的副本
type PresenceCache interface {
	AddMember(ctx context.Context, sessionID, userID, name string, ttl time.Duration) error
	RemoveMember(ctx context.Context, sessionID, userID string) error
	GetSessions(ctx context.Context) ([]string, error)
	GetAliveMembers(ctx context.Context, sessionID string) ([]PresenceMember, error)
	SetCursor(ctx context.Context, sessionID, userID string, jsonData []byte, ttl time.Duration) error
	GetCursor(ctx context.Context, sessionID, userID string) ([]byte, error)
}

type PresenceMember struct {
	UserID string
	Name   string
}

type redisPresence struct {
	rdb redis.UniversalClient
}

func NewRedisPresence(rdb redis.UniversalClient) PresenceCache {
	return &redisPresence{rdb: rdb}
}

// AddMember 上线/续期共用：score 存 expireAt（Unix 秒），表达“逻辑 TTL”
func (p *redisPresence) AddMember(ctx context.Context, sessionID, userID, name string, ttl time.Duration) error {
	tx := p.rdb.TxPipeline()
	expireAt := time.Now().Add(ttl).Unix()
	tx.ZAdd(ctx, memberKey(sessionID), redis.Z{Score: float64(expireAt), Member: userID})
	tx.HSet(ctx, namesKey(sessionID), userID, name)
	tx.SAdd(ctx, sessionsIdxKey, sessionID)
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) RemoveMember(ctx context.Context, sessionID, userID string) error {
	tx := p.rdb.TxPipeline()
	tx.ZRem(ctx, memberKey(sessionID), userID)
	tx.HDel(ctx, namesKey(sessionID), userID)
	tx.Del(ctx, cursorKey(sessionID, userID))
	if _, err := tx.Exec(ctx); err != nil {
		return err
	}
	// 最后一个成员走了就把会话从索引里摘掉
	n, err := p.rdb.ZCard(ctx, memberKey(sessionID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return p.rdb.SRem(ctx, sessionsIdxKey, sessionID).Err()
	}
	return nil
}

func (p *redisPresence) GetSessions(ctx context.Context) ([]string, error) {
	return p.rdb.SMembers(ctx, sessionsIdxKey).Result()
}

func (p *redisPresence) SetCursor(ctx context.Context, sessionID, userID string, jsonData []byte, ttl time.Duration) error {
	return p.rdb.Set(ctx, cursorKey(sessionID, userID), jsonData, ttl).Err()
}

func (p *redisPresence) GetCursor(ctx context.Context, sessionID, userID string) ([]byte, error) {
	return p.rdb.Get(ctx, cursorKey(sessionID, userID)).Bytes()
}

// GetAliveMembers 先用 lua 清掉过期成员，再查在线成员和名字
// 约定：score=expireAt（Unix 秒），expireAt <= now 视为过期
func (p *redisPresence) GetAliveMembers(ctx context.Context, sessionID string) ([]PresenceMember, error) {
	now := time.Now().Unix()
	luaScript := `
	-- KEYS[1] = memberKey(sessionID)
	-- KEYS[2] = namesKey(sessionID)
	-- ARGV[1] = now (unix seconds)

	local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
	if #expired > 0 then
		redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
		redis.call("HDEL", KEYS[2], unpack(expired))
	end
	return #expired
	`
	script := redis.NewScript(luaScript)
	if _, err := script.Run(ctx, p.rdb, []string{memberKey(sessionID), namesKey(sessionID)}, now).Int(); err != nil && err != redis.Nil {
		return nil, err
	}

	aliveIDs, err := p.rdb.ZRangeByScore(ctx, memberKey(sessionID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10), // > now
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(aliveIDs) == 0 {
		return nil, nil
	}

	names, err := p.rdb.HMGet(ctx, namesKey(sessionID), aliveIDs...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	members := make([]PresenceMember, 0, len(aliveIDs))
	for i, id := range aliveIDs {
		name := ""
		if i < len(names) && names[i] != nil {
			name, _ = names[i].(string)
		}
		members = append(members, PresenceMember{UserID: id, Name: name})
	}
	return members, nil
}
