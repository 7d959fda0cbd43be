// Package storage defines the capability contract every mirror storage
// backend must satisfy (predicates, read/write, atomic rewrite, hashing,
// directory removal) together with the fixed on-disk layout derived from the
// mirror root and the versioned registry that selects one concrete backend at
// runtime. Mutating operations rely on the temp-file + rename protocol so
// concurrent readers never observe partially written files; backends are
// discovered through static registration and memoized per extension point.
package storage
