// Package token provides client-side access-token primitives.
//
// The client treats access tokens as opaque compact signed tokens: it checks
// only their shape (three dot-separated segments) and never verifies
// signatures. Raw tokens must not reach logs; use Fingerprint instead.
package token
