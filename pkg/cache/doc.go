// Package cache provides an optional Redis cache for lookup outcomes.
//
// Only conclusive answers are cached: clean identifiers and detections.
// Rate limit responses and transport failures always go back to the
// provider on the next scan.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{Provider: "screenshare.lol", Identifier: "123456789012345678"}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - ask the provider
//	}
//
//	// Store a clean result for one hour
//	err = manager.Set(ctx, key, cache.NewEntry(false, nil, time.Hour))
//
// # Key Format
//
// Keys are namespaced by provider so two endpoints never share answers:
//
//	lookup:screenshare.lol:123456789012345678
//
// # Metrics
//
//   - lookup_cache_hits_total (Counter)
//   - lookup_cache_misses_total (Counter)
//   - lookup_cache_errors_total{operation} (Counter): get, set, delete
package cache
