// Package storage defines the persistence contracts the engine runs
// on: ClientStore for registered clients, GrantStore for authorization
// codes, and TokenStore for access and refresh tokens.
//
// The security-critical surface is the pair of consume operations.
// ConsumeGrant and ConsumeRefreshToken must let exactly one concurrent
// caller succeed; on reuse they return the stored record together with
// a sentinel error, which is what lets the engine revoke everything a
// stolen credential produced.
//
// Backends live in subpackages: storage/memory for development and
// tests, storage/valkey for distributed production deployments, and
// storage/mock for error injection in unit tests.
package storage
