package runstore

// Package runstore persists completed distribution runs.
//
// It currently supports:
//   - Run batches (publish-time results per target)
//   - Verification check sets, attached to their run
