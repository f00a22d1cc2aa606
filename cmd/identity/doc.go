// Package identity holds the user record shared by the session client,
// the storage layer and the event stream.
//
// Records are owned by the server. The client only normalizes input and
// answers role questions; it never mints users locally.
package identity
