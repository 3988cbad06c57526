// Package ir provides the canonical intermediate representation produced by
// the neuraldsl front end.
//
// This package contains type definitions and the canonical encoding only.
// All other internal packages import ir; ir imports nothing internal. This
// keeps the IR the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Values form a sealed set (Int, Float, Bool, Str, None, Tuple, List, *Map)
//   - Parameter maps keep insertion order for display and sort keys for hashing
//   - Dimensions are non-negative integers or Unknown
//   - All JSON tags use snake_case
package ir
