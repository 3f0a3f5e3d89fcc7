// Package models defines the core domain models for the split ledger.
//
// # Ledger Models
//
// The ledger owns the following records:
//   - SplitRecord: how a bill's total is apportioned among group members
//   - SplitHistoryEntry: audit trail of share edits
//   - Payment, Refund: immutable money movements against a member's obligation
//   - BillBalance: per-bill aggregate of what is owed and what has been paid
//   - Settings: process-wide ledger configuration (admin, fee, bounds)
//
// # Catalog Models
//
// Bill and Group are owned by the catalog. The ledger only reads them through
// the lookup interfaces in package ledger.
//
// # Units
//
// Amounts are int64 minor units. Shares are basis points where 10000 = 100%.
// Timestamps are logical clock readings, not wall time.
//
// Relationships are expressed with ID fields rather than pointers.
package models
