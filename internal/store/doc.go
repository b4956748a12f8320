// Package store provides SQLite-backed durable storage for estimation runs.
//
// A run record pins down everything needed to reproduce a fit:
//   - data_digest: SHA-256 of the loaded data matrix
//   - model_text / model_digest: the canonical model syntax and its SHA-256
//   - estimator: ML or MLM
//   - estimates: the free-parameter point estimates in canonical order
//
// Estimation is deterministic for fixed inputs, so a replay that re-fits
// the stored model against the stored data digests must reproduce every
// estimate bit for bit. Verify in replay.go implements that comparison.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
