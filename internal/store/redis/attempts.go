package redis

import (
	"context"
	"strconv"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

// Hash por clave: c (count), ws (window start ms), bu (blocked until ms, 0 = sin bloqueo).
// Misma tabla de transición que repository.ApplyFailure.
const registerFailureScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local block = tonumber(ARGV[3])
local allowed = tonumber(ARGV[4])

local h = redis.call("HMGET", KEYS[1], "c", "ws", "bu")
local c = tonumber(h[1]) or 0
local ws = tonumber(h[2]) or 0
local bu = tonumber(h[3]) or 0

if bu > 0 and now < bu then
  return {c, ws, bu}
end

if bu == 0 and c > 0 and (now - ws) < window then
  c = c + 1
else
  c = 1
  ws = now
  bu = 0
end
if c > allowed then
  bu = now + block
end

local ttl = ws + window - now
if bu > 0 and (bu - now) > ttl then
  ttl = bu - now
end
if ttl < 1 then
  ttl = 1
end
redis.call("HSET", KEYS[1], "c", c, "ws", ws, "bu", bu)
redis.call("PEXPIRE", KEYS[1], ttl)
return {c, ws, bu}
`

const resetUnlessBlockedScript = `
local now = tonumber(ARGV[1])
local h = redis.call("HMGET", KEYS[1], "c", "ws", "bu")
local bu = tonumber(h[3]) or 0
if bu > 0 and now < bu then
  return {tonumber(h[1]) or 0, tonumber(h[2]) or 0, bu}
end
redis.call("DEL", KEYS[1])
return {0, 0, 0}
`

var (
	registerFailureLua    = rdb.NewScript(registerFailureScript)
	resetUnlessBlockedLua = rdb.NewScript(resetUnlessBlockedScript)
)

// Attempts es el AttemptRepository sobre Redis.
type Attempts struct {
	c      rdb.Cmdable
	prefix string
}

func NewAttempts(c rdb.Cmdable, prefix string) *Attempts {
	return &Attempts{c: c, prefix: normPrefix(prefix)}
}

func (s *Attempts) key(k repository.AttemptKey) string {
	return s.prefix + "att:" + part(k.TenantID) + ":" + k.Type + ":" + part(k.Identifier)
}

func (s *Attempts) Get(ctx context.Context, key repository.AttemptKey, p repository.AttemptPolicy, now time.Time) (*repository.AttemptRecord, error) {
	vals, err := s.c.HMGet(ctx, s.key(key), "c", "ws", "bu").Result()
	if err != nil {
		return nil, err
	}
	if vals[0] == nil {
		return nil, repository.ErrNotFound
	}
	rec := repository.AttemptRecord{
		Count:        int(atoi(vals[0])),
		WindowStart:  fromMillis(atoi(vals[1])),
		BlockedUntil: fromMillis(atoi(vals[2])),
	}
	if !rec.Live(p, now) {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (s *Attempts) RegisterFailure(ctx context.Context, key repository.AttemptKey, p repository.AttemptPolicy, now time.Time) (*repository.AttemptRecord, error) {
	res, err := registerFailureLua.Run(ctx, s.c, []string{s.key(key)},
		now.UnixMilli(), p.Window.Milliseconds(), p.Block.Milliseconds(), p.Allowed,
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	return recordFrom(res), nil
}

func (s *Attempts) ResetUnlessBlocked(ctx context.Context, key repository.AttemptKey, now time.Time) (*repository.AttemptRecord, error) {
	res, err := resetUnlessBlockedLua.Run(ctx, s.c, []string{s.key(key)}, now.UnixMilli()).Int64Slice()
	if err != nil {
		return nil, err
	}
	return recordFrom(res), nil
}

func recordFrom(res []int64) *repository.AttemptRecord {
	if len(res) != 3 {
		return &repository.AttemptRecord{}
	}
	return &repository.AttemptRecord{
		Count:        int(res[0]),
		WindowStart:  fromMillis(res[1]),
		BlockedUntil: fromMillis(res[2]),
	}
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func atoi(v any) int64 {
	s, _ := v.(string)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

var _ repository.AttemptRepository = (*Attempts)(nil)
