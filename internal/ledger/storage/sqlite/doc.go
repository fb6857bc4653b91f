// Package sqlite provides the ledger persistence adapter backed by SQLite.
//
// The statement journal and the block table live in one database file so the
// sealing transaction can claim statements and insert the block atomically.
package sqlite
