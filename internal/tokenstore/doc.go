// Package tokenstore persists the access token record across two lifetime scopes.
//
// A record lives in exactly one scope at a time:
//   - Durable: survives restarts ("remember me"); file, keyring or redis backed
//   - Session: cleared when the login session ends; runtime-dir file or process memory
//
// Store.Save writes one scope and clears the other, so Store.Read never sees a stale
// duplicate. Durable wins on read so a remembered login is not shadowed by an old session entry.
package tokenstore
