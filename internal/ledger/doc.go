// Package ledger implements the durable idempotency ledger for the relay
// path.
//
// The ledger answers "has this exact relay event already been delivered?"
// and survives process restarts as one JSON file with the same atomic-write
// discipline as the credential cache. It is bounded: beyond the configured
// cap the oldest entries by last-seen time are evicted first.
package ledger
