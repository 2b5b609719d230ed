package redis

// Lua scripts executed atomically on the Redis side. The per-user quota
// scripts are the only place the user counter is mutated; the check and
// increment happen in one step so concurrent requests cannot both pass the
// limit check before either increments.
const (
	// QuotaAcquireScript reserves quantity against a per-user quota counter.
	// KEYS[1] counter key; ARGV: quantity, limit, ttl seconds, seed.
	// The seed initializes a cold counter from the durable reservation sum.
	// Returns the new counter value, or -1 when the limit would be exceeded.
	QuotaAcquireScript = `
		local current = redis.call('GET', KEYS[1])
		if not current then
			redis.call('SET', KEYS[1], ARGV[4], 'EX', ARGV[3])
			current = tonumber(ARGV[4])
		else
			current = tonumber(current)
		end

		local quantity = tonumber(ARGV[1])
		local limit = tonumber(ARGV[2])

		if current + quantity > limit then
			return -1
		end

		redis.call('INCRBY', KEYS[1], quantity)
		redis.call('EXPIRE', KEYS[1], ARGV[3])
		return current + quantity
	`

	// QuotaReleaseScript returns quantity to a per-user quota counter,
	// flooring at zero. KEYS[1] counter key; ARGV[1] quantity.
	// Returns the new counter value.
	QuotaReleaseScript = `
		local current = tonumber(redis.call('GET', KEYS[1]) or '0')
		local quantity = tonumber(ARGV[1])
		if quantity > current then
			quantity = current
		end
		if quantity > 0 then
			redis.call('DECRBY', KEYS[1], quantity)
		end
		return current - quantity
	`
)
