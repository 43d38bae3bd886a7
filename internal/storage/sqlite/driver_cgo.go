//go:build cgo_sqlite

// ABOUTME: CGO SQLite driver using mattn/go-sqlite3
// ABOUTME: Selected with the cgo_sqlite build tag in place of the pure-Go driver

// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqlite

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName = "sqlite3"
	driverType = "cgo"
)

func fileDSN(path string) string {
	return "file:" + path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
}

func memoryDSN() string {
	return "file::memory:?_foreign_keys=on"
}
