// Package ledger models named ledger accounts with a running total balance
// and per-day deltas. All balance mutations go through a single Posting
// applied atomically by the Repository.
package ledger
