// Package store provides the durable per-origin key/value stores consumed by
// the activation manager (preferences) and the sandbox runtime (plugin
// bundles).
package store

// KV is a durable string key/value store. Get reports absence with ok=false
// for never-written keys; writes are visible to subsequent reads in the same
// session.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	// Keys returns all keys with the given prefix, sorted.
	Keys(prefix string) ([]string, error)
}
