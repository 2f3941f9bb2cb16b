// Package value defines the closed set of values dirstore can persist.
//
// Every storable value implements the sealed Value interface. Only the types
// in this package implement it, so encoders can switch exhaustively over the
// concrete types without a silent fallthrough.
//
// Key design constraints:
//   - Container kind is part of the value: a Tuple never compares equal to a
//     List with the same elements
//   - Set and FrozenSet members are unique by their Repr and must be hashable
//     (scalars, tuples, frozensets)
//   - Canonical text forms for Decimal, Date, DateTime and Time live here so
//     the codec and the CLI agree on them
//
// This package imports nothing internal.
package value
