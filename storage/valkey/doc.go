// Package valkey stores OAuth2 clients, grants, and tokens in a Valkey
// (Redis-compatible) server.
//
// The Store type satisfies [storage.ClientStore], [storage.GrantStore],
// and [storage.TokenStore], so a single connection serves the whole
// engine. Records live under a configurable key prefix (default
// "oauth2:"):
//
//	{prefix}client:{clientID}        -> JSON(Client)
//	{prefix}grant:{code}             -> JSON(Grant) (TTL)
//	{prefix}access:{token}           -> JSON(AccessToken) (TTL)
//	{prefix}refresh:{token}          -> JSON(RefreshToken) (TTL)
//	{prefix}userclient:{uid}:{cid}   -> SET of token references (TTL)
//
// Grants and tokens carry TTLs matching their expiry, so Valkey reclaims
// expired records on its own.
//
// # Atomicity
//
// ConsumeGrant and ConsumeRefreshToken run as Lua scripts. Each script
// reads, checks, and marks the record in one server-side step, so two
// concurrent exchanges of the same code or refresh token cannot both
// succeed. Consumed records stay in place, flagged used or rotated,
// until their TTL runs out; a replay inside the credential lifetime is
// therefore detected rather than treated as a miss.
//
// # Usage
//
//	store, err := valkey.New(valkey.Config{
//	    Address:   "localhost:6379",
//	    KeyPrefix: "oauth2:",
//	})
//
// Production deployments should set Password and a TLS config on
// Config; both are passed through to the underlying client.
//
// # Encryption at rest
//
// An optional [security.Encryptor] protects token material inside
// stored records:
//
//	key, _ := security.GenerateKey()
//	encryptor, _ := security.NewEncryptor(key)
//	store.SetEncryptor(encryptor)
//
// Values are sealed with AES-256-GCM before writing and opened on read.
// Lookup keys keep the plaintext token value so lookups stay O(1); the
// encryption covers the paired token references inside record bodies.
package valkey
