package semaphore

import "github.com/redis/go-redis/v9"

// reapExpired drops any permit whose score (expiry epoch ms) has passed,
// removing it from both the permits ZSET and the weights hash. Prefixed to
// acquireScript (refreshScript does not run it) so capacity accounting
// never counts a stale holder.
const reapExpired = `
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[4])
for _, member in ipairs(expired) do
	redis.call("HDEL", KEYS[2], member)
end
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[4])
`

// acquireScript admits ARGV[1] (token) for ARGV[2] (weight) units if the
// sum of all other live holders' weights leaves enough room under
// ARGV[3] (capacity). Re-acquiring with the same token (a refresh or a
// retry) never counts itself twice, making Save/SaveRead idempotent for
// the same holder. KEYS = {permitsKey, weightsKey}. ARGV = {token,
// weight, capacity, nowMs, newScoreMs}.
var acquireScript = redis.NewScript(reapExpired + `
local members = redis.call("ZRANGE", KEYS[1], 0, -1)
local used = 0
for _, member in ipairs(members) do
	if member ~= ARGV[1] then
		local w = tonumber(redis.call("HGET", KEYS[2], member))
		if w then
			used = used + w
		else
			used = used + 1
		end
	end
end

local weight = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
if used + weight > capacity then
	return 0
end

redis.call("ZADD", KEYS[1], ARGV[5], ARGV[1])
redis.call("HSET", KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// refreshScript extends a live holder's score, failing if the token is
// not currently a member. KEYS = {permitsKey, weightsKey}. ARGV = {token,
// newScoreMs}.
var refreshScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[2], ARGV[1]) == 0 then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
return 1
`)

// releaseScript removes a holder unconditionally; a no-op if it was
// never a member. KEYS = {permitsKey, weightsKey}. ARGV = {token}.
var releaseScript = redis.NewScript(`
redis.call("ZREM", KEYS[1], ARGV[1])
redis.call("HDEL", KEYS[2], ARGV[1])
return 1
`)
