// Package logx provides a small structured logging layer over zerolog.
//
// It exists so services can hold a value Logger that stays "live" across
// runtime config changes (level/output swaps) without re-plumbing loggers.
package logx
