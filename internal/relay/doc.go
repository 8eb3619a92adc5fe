// Package relay turns upstream task-change notifications into canonical
// calendar events and delivers each distinct change downstream exactly once.
//
// The pipeline has three stages. Normalize extracts fields from loosely
// shaped payloads through ordered accessor lists and gates on the target
// category. The ledger answers whether the exact change was delivered
// before. The dispatcher performs the single POST; only a confirmed 2xx
// marks the ledger, so failures remain retryable on upstream redelivery.
package relay
