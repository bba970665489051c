package coordination

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counts the live hold entries of a party and prunes members whose hold expired
// or was taken over by another party.
var countPartyHoldsScript = redis.NewScript(`
	local setKey = KEYS[1]
	local partyId = tonumber(ARGV[1])
	local cursor = "0"
	local batchSize = 100
	local staleMembers = {}
	local count = 0

	repeat
		local result = redis.call("SSCAN", setKey, cursor, "COUNT", batchSize)
		cursor = result[1]
		local members = result[2]

		for _, member in ipairs(members) do
			local raw = redis.call("GET", "seat:hold:" .. member)
			if raw and tonumber(cjson.decode(raw).partyId) == partyId then
				count = count + 1
			else
				table.insert(staleMembers, member)
			end
		end
	until cursor == "0"

	if #staleMembers > 0 then
		redis.call("SREM", setKey, unpack(staleMembers))
	end

	return count
`)

var deleteHoldIfTokenScript = redis.NewScript(`
	local raw = redis.call("GET", KEYS[1])
	if not raw then
		return 0
	end

	if cjson.decode(raw).holdToken == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end

	return 0
`)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end

	return 0
`)

type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

func (s *RedisStore) SaveHold(ctx context.Context, key HoldKey, entry HoldEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	partyKey := partyHoldsKey(entry.PartyID)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key.String(), payload, ttl)
	pipe.SAdd(ctx, partyKey, key.member())
	pipe.Expire(ctx, partyKey, ttl)

	_, err = pipe.Exec(ctx)

	return err
}

func (s *RedisStore) GetHold(ctx context.Context, key HoldKey) (*HoldEntry, error) {
	raw, err := s.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	var entry HoldEntry
	err = json.Unmarshal(raw, &entry)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (s *RedisStore) HoldTTL(ctx context.Context, key HoldKey) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key.String()).Result()
	if err != nil {
		return 0, err
	}

	// -2 means the key does not exist, -1 that it has no expiry.
	if ttl < 0 {
		return 0, ErrNotFound
	}

	return ttl, nil
}

func (s *RedisStore) DeleteHold(ctx context.Context, key HoldKey) error {
	return s.client.Del(ctx, key.String()).Err()
}

func (s *RedisStore) DeleteHoldIfToken(ctx context.Context, key HoldKey, token string) error {
	return deleteHoldIfTokenScript.Run(ctx, s.client, []string{key.String()}, token).Err()
}

func (s *RedisStore) CountPartyHolds(ctx context.Context, partyID int64) (int, error) {
	count, err := countPartyHoldsScript.Run(
		ctx,
		s.client,
		[]string{partyHoldsKey(partyID)},
		strconv.FormatInt(partyID, 10)).Int()

	if err != nil {
		return 0, err
	}

	return count, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) GetLayout(ctx context.Context, showingID int64) ([]byte, error) {
	raw, err := s.client.Get(ctx, layoutKey(showingID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return raw, nil
}

func (s *RedisStore) SetLayout(ctx context.Context, showingID int64, payload []byte, ttl time.Duration) error {
	return s.client.Set(ctx, layoutKey(showingID), payload, ttl).Err()
}

func (s *RedisStore) DeleteLayout(ctx context.Context, showingID int64) error {
	return s.client.Del(ctx, layoutKey(showingID)).Err()
}

// TryLock sets key to owner only if it is free. It never waits.
func (s *RedisStore) TryLock(ctx context.Context, key, owner string, lease time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, owner, lease).Result()
}

// Unlock deletes key only while it is still owned by owner.
func (s *RedisStore) Unlock(ctx context.Context, key, owner string) error {
	return unlockScript.Run(ctx, s.client, []string{key}, owner).Err()
}
