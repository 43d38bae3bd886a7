//go:build !cgo_sqlite

// ABOUTME: Default pure-Go SQLite driver using modernc.org/sqlite
// ABOUTME: Needs no C toolchain; WAL, foreign keys and a busy timeout are set per connection

package sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	driverType = "purego"
)

func fileDSN(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
}

func memoryDSN() string {
	return ":memory:?_pragma=foreign_keys(ON)"
}
