// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing orchestration rules to remain
// independent of specific database technologies or persistence details.
//
// Storage is reached through a Provider, which hands out a Session scoped to
// one operation. Callers release the session on every exit path.
package store
