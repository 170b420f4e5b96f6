package redislock

import "github.com/redis/go-redis/v9"

// refreshScript is the compare-and-set Lua from spec.md §4.6: extend the
// TTL only if the caller's token still matches the stored value.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
else
	return 0
end
`)

// acquireWriterScript is the atomic single-EVAL replacement for a
// check-then-set exclusive acquire: it reaps expired readers, refuses if
// any live reader remains, refuses if a different writer already holds
// writerKey, and otherwise claims (or idempotently re-claims) it — all
// inside one round trip, so a SaveRead can never slip in between a
// reader-count check and the writer SET the way two separate commands
// would allow. KEYS = {writerKey, readersKey}. ARGV = {token, ttlMs,
// nowMs}.
var acquireWriterScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[2], "-inf", "(" .. ARGV[3])
if redis.call("ZCARD", KEYS[2]) > 0 then
	return 0
end
local cur = redis.call("GET", KEYS[1])
if cur and cur ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// deleteScript is the symmetric compare-and-delete Lua.
var deleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// addReaderScript adds the caller's token to the readers sorted set,
// scored by expiry epoch milliseconds, but only if no exclusive writer
// currently holds writerKey.
var addReaderScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
return 1
`)

// removeReaderScript deletes the caller's token from the readers sorted
// set; a no-op if the token was never a member.
var removeReaderScript = redis.NewScript(`
return redis.call("ZREM", KEYS[1], ARGV[1])
`)

// refreshReaderScript extends a reader token's score (its expiry), only
// if it is still a member.
var refreshReaderScript = redis.NewScript(`
if redis.call("ZSCORE", KEYS[1], ARGV[1]) then
	redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
	return 1
else
	return 0
end
`)
