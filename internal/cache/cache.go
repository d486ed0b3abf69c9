// Package cache provides a small in-process LRU cache with expiry, used to
// keep per-user ledger snapshots between change notifications.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Group sweeps several caches at once. It is driven by the job scheduler.
type Group []Cleaner

// CleanExpired sweeps every member and returns the total removed.
func (g Group) CleanExpired() int {
	total := 0
	for _, c := range g {
		total += c.CleanExpired()
	}
	return total
}
