// Package proxyconfig resolves the proxy configuration handed to the
// rendering subsystem when a viewer session starts.
//
// Candidates are modeled as scoped layers ordered by priority:
//
//	explicit (300) -> active (200) -> builtin (100)
//
// The first present layer wins. Unlike option layering there is no field
// merge: a configuration descriptor is opaque and is selected whole.
//
// The active layer lives in a Registry. A Registry is consulted by every
// resolution until overwritten and is never consumed destructively.
package proxyconfig
