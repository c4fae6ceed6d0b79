// Package ir provides the record types shared by the engine, the store and
// the CLI.
//
// This package contains type definitions only. All other internal packages
// may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Instance numbers start at 1 within each worker
//   - Sampled values keep parameter-spec order
//   - All JSON tags use snake_case
package ir
