// Package core ties the dashboard together: it owns the lead dataset and
// runs batch sends.
//
// It has no HTTP knowledge and can be driven by the web handlers or by tests
// with stub collaborators.
//
// # Dataset
//
// [Service.Refresh] fetches the sheet and swaps in a new immutable
// [Dataset], bumping its version. Per-session table engines compare versions
// and re-sync lazily. A failed refresh keeps the old records and records the
// error so the page can show it.
//
// # Batches
//
// [Service.StartBatch] takes a snapshot of the target numbers, waits for a
// slot from the [BatchLimiter] and runs the send loop in the background. The
// flow is:
//
//  1. Progress is fanned out to subscribers via [Service.SubscribeProgress]
//  2. A batch ending with errors gets an errors.json report, archived when
//     object storage is configured
//  3. The finished run is written to history
//  4. The live entry is dropped after the retain period; history remains
//
// # Error Handling
//
// Errors are mapped to user messages with [MapError]. Codes are grouped by
// area:
//
//   - CFG: configuration
//   - SHEET: spreadsheet fetch and decode
//   - MSG: template form and messaging API
//   - BAT: batch submission and lookup
//   - TBL: table operations
//   - RATE, GATE, ERR000: everything else
package core
