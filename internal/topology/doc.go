// Package topology loads the artifacts a Monte Carlo experiment leaves behind
// and reduces them to the set of distinct outcomes.
//
// Topology files (*.g23) are treated as opaque bytes. Two runs share a
// topology when a KeyFunc maps their artifacts to the same key; the default
// ContentKey hashes the content with line endings normalized.
//
// Deduplicate is order-independent: the same artifacts in any order produce
// the same classes, representatives, and member lists.
package topology
