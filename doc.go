// Package viewer bootstraps and runs a visualization viewer session.
//
// A session reconciles three state sources that change independently:
//
//	navigation history  <-> navigation.Machine <-> viewstate.Store
//	settings.Store      <-> settings.Sync      <-> viewstate.Store
//
// CreateSession resolves the proxy configuration (explicit argument, then
// the Environment's active default, then the built-in fallback), builds the
// proxy manager, opens the settings store, creates the view-state store,
// mounts the UI root and wires navigation and settings together.
//
// Process-wide state lives in an Environment. DefaultEnvironment backs the
// package-level helpers such as SetActiveProxyConfiguration; tests and
// embedders that need isolation pass their own with WithEnvironment.
package viewer
