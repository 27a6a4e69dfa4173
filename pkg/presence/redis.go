package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is how long a connection stays online without a heartbeat
// from the instance holding it.
const DefaultTTL = 90 * time.Second

// Add and remove run as scripts so the set change and the
// online/offline transition are decided atomically across instances.
// Members whose expiry has passed belong to instances that stopped
// heartbeating and are purged first.
var (
	addScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[3])
local added = redis.call('ZADD', KEYS[1], ARGV[4], ARGV[1])
local n = redis.call('ZCARD', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[2])
if added == 1 and n == 1 then return 1 end
return 0`)

	removeScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[3])
local removed = redis.call('ZREM', KEYS[1], ARGV[1])
local n = redis.call('ZCARD', KEYS[1])
if n == 0 then redis.call('ZREM', KEYS[2], ARGV[2]) end
if removed == 1 and n == 0 then return 1 end
return 0`)
)

// Redis keeps the registry in sorted sets scored by expiry (unix ms):
//
//	<prefix>:conn:<userID> -> connection ids
//	<prefix>:online        -> online user ids
//
// Each instance refreshes the expiry of its own connections with
// Heartbeat, so a crashed instance's users fall offline after the TTL.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	local map[uint]map[string]struct{}
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "presence"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    DefaultTTL,
		now:    time.Now,
		local:  make(map[uint]map[string]struct{}),
	}
}

func (r *Redis) connKey(userID uint) string {
	return fmt.Sprintf("%s:conn:%d", r.prefix, userID)
}

func (r *Redis) onlineKey() string {
	return r.prefix + ":online"
}

func (r *Redis) expiry(now time.Time) int64 {
	return now.Add(r.ttl).UnixMilli()
}

func (r *Redis) Add(ctx context.Context, userID uint, connID string) (bool, error) {
	now := r.now()
	n, err := addScript.Run(ctx, r.client, []string{r.connKey(userID), r.onlineKey()},
		connID, userID, now.UnixMilli(), r.expiry(now), r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	if r.local[userID] == nil {
		r.local[userID] = make(map[string]struct{})
	}
	r.local[userID][connID] = struct{}{}
	r.mu.Unlock()
	return n == 1, nil
}

func (r *Redis) Remove(ctx context.Context, userID uint, connID string) (bool, error) {
	r.mu.Lock()
	if conns := r.local[userID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.local, userID)
		}
	}
	r.mu.Unlock()

	now := r.now()
	n, err := removeScript.Run(ctx, r.client, []string{r.connKey(userID), r.onlineKey()},
		connID, userID, now.UnixMilli()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Heartbeat pushes back the expiry of every connection this instance holds.
func (r *Redis) Heartbeat(ctx context.Context) error {
	r.mu.Lock()
	held := make(map[uint][]string, len(r.local))
	for userID, conns := range r.local {
		for id := range conns {
			held[userID] = append(held[userID], id)
		}
	}
	r.mu.Unlock()
	if len(held) == 0 {
		return nil
	}

	score := float64(r.expiry(r.now()))
	pipe := r.client.Pipeline()
	for userID, ids := range held {
		members := make([]redis.Z, 0, len(ids))
		for _, id := range ids {
			members = append(members, redis.Z{Score: score, Member: id})
		}
		pipe.ZAddXX(ctx, r.connKey(userID), members...)
		pipe.PExpire(ctx, r.connKey(userID), r.ttl)
		pipe.ZAdd(ctx, r.onlineKey(), redis.Z{Score: score, Member: userID})
	}
	_, err := pipe.Exec(ctx)
	return err
}

// StartHeartbeat runs Heartbeat every interval until stop is called.
func (r *Redis) StartHeartbeat(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = r.ttl / 3
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := r.Heartbeat(context.Background()); err != nil {
					log.Warn().Err(err).Msg("presence heartbeat failed")
				}
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (r *Redis) live() string {
	return strconv.FormatInt(r.now().UnixMilli(), 10)
}

func (r *Redis) IsOnline(ctx context.Context, userID uint) bool {
	n, err := r.client.ZCount(ctx, r.connKey(userID), "("+r.live(), "+inf").Result()
	if err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("presence lookup failed")
		return false
	}
	return n > 0
}

func (r *Redis) Connections(ctx context.Context, userID uint) []string {
	ids, err := r.client.ZRangeByScore(ctx, r.connKey(userID), &redis.ZRangeBy{Min: "(" + r.live(), Max: "+inf"}).Result()
	if err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("presence lookup failed")
		return nil
	}
	sort.Strings(ids)
	return ids
}

func (r *Redis) OnlineCount(ctx context.Context) int {
	n, err := r.client.ZCount(ctx, r.onlineKey(), "("+r.live(), "+inf").Result()
	if err != nil {
		log.Warn().Err(err).Msg("presence count failed")
		return 0
	}
	return int(n)
}

// OnlineUsers lists user ids currently online, mainly for diagnostics.
func (r *Redis) OnlineUsers(ctx context.Context) ([]uint, error) {
	raw, err := r.client.ZRangeByScore(ctx, r.onlineKey(), &redis.ZRangeBy{Min: "(" + r.live(), Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]uint, 0, len(raw))
	for _, s := range raw {
		if v, err := strconv.ParseUint(s, 10, 64); err == nil {
			out = append(out, uint(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
