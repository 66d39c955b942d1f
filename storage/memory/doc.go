// Package memory keeps OAuth2 clients, grants, and tokens in process
// memory.
//
// A single Store satisfies ClientStore, GrantStore, and TokenStore.
// All maps sit behind one sync.RWMutex, and grant consumption and
// refresh token rotation happen under the write lock, so the same
// single-use guarantees hold as with the valkey backend. A background
// goroutine sweeps expired records on a configurable interval.
//
// Nothing survives a restart. Use this backend for development, tests,
// and single-instance deployments; use storage/valkey when persistence
// or multiple instances are needed.
//
//	store := memory.New()
//	defer store.Stop()
//
//	eng, _ := engine.New(store, store, store, registry, config, logger)
package memory
