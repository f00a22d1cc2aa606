// Package storage persists the session's string entries across process restarts.
//
// Every backend implements Store. Open picks one from a URL:
//
//	memory:                         process-local, lost on exit
//	file:///path/session.json       single JSON document (default)
//	sqlite:///path/session.db       local SQLite database
//	postgres://user:pw@host/db      shared Postgres table
//	redis://host:6379/0             shared Redis keyspace
//
// SealedStore wraps any backend and encrypts values at rest.
package storage
