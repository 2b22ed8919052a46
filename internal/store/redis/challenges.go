package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

// Todas las claves de un (tenant, client) comparten el hash tag {tenant:client},
// así caen en el mismo slot y los scripts funcionan en Redis Cluster.
//
// KEYS[1] = puntero vivo (tenant,client,user,device) → state
// KEYS[2] = clave del challenge nuevo
// KEYS[3] = clave del challenge anterior (o KEYS[2] si no había)
// ARGV: json, ttl ms, state nuevo, state anterior esperado ("" si no había)
//
// Si el puntero cambió desde que se leyó, devuelve 0 y el caller reintenta.
const putChallengeScript = `
local prev = redis.call("GET", KEYS[1])
if (prev or "") ~= ARGV[4] then
  return 0
end
if prev then
  redis.call("DEL", KEYS[3])
end
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
redis.call("SET", KEYS[1], ARGV[3], "PX", ARGV[2])
return 1
`

// borra el puntero vivo solo si sigue apuntando al state consumido
const releaseLiveScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const putChallengeAttempts = 8

var errPutContention = errors.New("redis: challenge pointer kept changing")

var (
	putChallengeLua = rdb.NewScript(putChallengeScript)
	releaseLiveLua  = rdb.NewScript(releaseLiveScript)
)

// Challenges es el ChallengeRepository sobre Redis.
type Challenges struct {
	c      rdb.Cmdable
	prefix string
}

func NewChallenges(c rdb.Cmdable, prefix string) *Challenges {
	return &Challenges{c: c, prefix: normPrefix(prefix)}
}

func slotTag(tenantID, clientID string) string {
	return "{" + part(tenantID) + ":" + part(clientID) + "}"
}

// el state es base64url aleatorio: va tal cual en la clave
func (s *Challenges) statePrefix(tenantID, clientID string) string {
	return s.prefix + "ch:" + slotTag(tenantID, clientID) + ":"
}

func (s *Challenges) liveKey(tenantID, clientID, userID, deviceID string) string {
	return s.prefix + "chlive:" + slotTag(tenantID, clientID) + ":" + part(userID) + ":" + part(deviceID)
}

func (s *Challenges) Put(ctx context.Context, ch repository.Challenge) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	ttl := ch.ExpiresAt.Sub(ch.CreatedAt)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	sp := s.statePrefix(ch.TenantID, ch.ClientID)
	live := s.liveKey(ch.TenantID, ch.ClientID, ch.UserID, ch.Device.DeviceID)
	next := sp + ch.State

	for i := 0; i < putChallengeAttempts; i++ {
		prev, err := s.c.Get(ctx, live).Result()
		if err != nil && !errors.Is(err, rdb.Nil) {
			return err
		}
		prevKey := next
		if prev != "" {
			prevKey = sp + prev
		}
		ok, err := putChallengeLua.Run(ctx, s.c, []string{live, next, prevKey},
			string(raw), ttl.Milliseconds(), ch.State, prev,
		).Int()
		if err != nil {
			return err
		}
		if ok == 1 {
			return nil
		}
	}
	return errPutContention
}

func (s *Challenges) Take(ctx context.Context, tenantID, clientID, state string) (*repository.Challenge, error) {
	raw, err := s.c.GetDel(ctx, s.statePrefix(tenantID, clientID)+state).Bytes()
	if errors.Is(err, rdb.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ch repository.Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	// limpieza del puntero; si falla solo queda apuntando a un state inexistente
	_ = releaseLiveLua.Run(ctx, s.c,
		[]string{s.liveKey(ch.TenantID, ch.ClientID, ch.UserID, ch.Device.DeviceID)}, state).Err()
	return &ch, nil
}

var _ repository.ChallengeRepository = (*Challenges)(nil)
