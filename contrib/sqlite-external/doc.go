// Package sqliteexternal registers the CGO SQLite driver
// (github.com/mattn/go-sqlite3) for builds that ask for it.
//
// Build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/juniper-tf
//
// core/sqlite picks the driver up automatically under that tag. Without the
// tag the pure Go modernc.org/sqlite driver is used and this package is empty.
//
// The CGO driver is noticeably faster when exporting the full corpus graph
// to SQLite; the pure Go driver keeps the default binary static and
// cross-compilable.
package sqliteexternal
