// Package session implements the client-side session Manager.
//
// A Manager owns one authenticated session (bearer token + user record). It
// acquires the session through the auth API, mirrors it into a storage.Store
// so it survives restarts, renews the token on a recurring RefreshCycle, and
// answers authorization queries.
//
// RefreshCycle: one goroutine per Manager, driven by a ticker. Each tick
// issues a refresh call; transport failures are retried a bounded number of
// times inside the tick, while an explicit rejection or a malformed response
// ends the session. Starting a cycle always cancels the previous one.
//
// Every establish/clear bumps an epoch. Late completions (refresh or profile
// update) only apply when their captured epoch is still current, so a cleared
// session is never resurrected.
package session
