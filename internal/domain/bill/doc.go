// Package bill contains the bulk-billing aggregates: the master bill that
// describes one campaign, the per-flat recipient bills it produces, wallet
// settlement records and the pending notification job list.
package bill
