// Package settings persists named user preferences independently of the
// transient view state held by a viewer session.
//
// A Store keeps the loaded values in memory and writes every Set through to
// a Backend:
//
//	Backend (memory | sqlite | redis) -> Store -> Get / Set / Sync
//
// Sync mirrors selected settings into an external state source using an
// explicit list of Directives. At establishment every directive pushes the
// persisted value into the source, so persisted settings win over the
// source's own defaults. With SyncMirror, later source changes are pulled
// back and persisted.
package settings
