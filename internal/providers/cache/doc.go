/*
Package cache stores processed documents, screenshots and extracted
content under content-addressable keys.

# Stores

A Store is a byte-oriented key/value backend with per-entry TTL:

  - RedisStore (go-redis), guarded by a circuit breaker
  - LevelDBStore (goleveldb), expiry kept in an 8-byte value header
  - MemoryStore, a map with a janitor goroutine

# Cache

Cache wraps a Store with per-kind TTLs, optional zstd compression and the
degradation policy: read failures are misses and write failures are logged
and dropped, so callers never see a store error.

Keys hash their identity tuple:

	proxy:<sha256(url, client_id)>
	screenshot:<sha256(url, client_id, device)>
	content:<sha256(url)>
*/
package cache
