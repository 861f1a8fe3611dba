// Package models defines the core domain models for splitsync.
//
// # Relational models
//
// Stored in Postgres:
//   - Group: a shared ledger with a name, an optional invite code and a
//     member list
//   - GroupMember: membership join row carrying the member's running balance
//   - Transaction: a pooled expense paid by one member and shared by several
//   - Transfer: a direct settlement payment between two members
//   - Tombstone: deletion marker so devices learn about removed content
//   - User: a registered account
//
// # Document models
//
// Stored in Redis:
//   - SessionRecord: one active device session, expiring via key TTL
//
// # Design principles
//
//  1. **Exact arithmetic**: balances and amounts are decimal.Decimal, never
//     floats. The sum of balances within a group is always zero.
//  2. **Ordered identifiers**: transaction, transfer and tombstone ids come
//     from one shared sequence, so "id greater than a device's watermark" is
//     meaningful across kinds. Ids are only unique per (id, kind).
//  3. **Avoid circular references**: models reference each other by id, not
//     by pointer.
package models
