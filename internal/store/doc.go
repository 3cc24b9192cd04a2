// Package store holds the TemplateStore and AuditStore implementations.
//
//   - Memory: process-local, for tests, the CLI and single-instance servers
//   - Postgres: pgxpool-backed, schema managed by goose migrations
//   - Redis: audit log as a capped list shared by every instance
//   - HTTP: templates kept by a remote template API
package store
