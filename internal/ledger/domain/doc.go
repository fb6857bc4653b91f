// Package domain defines the audit ledger's statement and block types and the
// canonical serialization used to hash blocks.
//
// Why this package exists:
// - It keeps the hash envelope's field ordering defined in one place so the
//   write path and the verification path cannot drift apart.
// - It isolates payload canonicalization from storage and transport concerns.
package domain
