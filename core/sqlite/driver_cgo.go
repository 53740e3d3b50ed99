//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3, selected with the cgo_sqlite
// build tag. The import lives in contrib/sqlite-external so the default
// build carries no CGO dependency.
package sqlite

import (
	sqliteexternal "github.com/FocuswithJustin/JuniperTF/contrib/sqlite-external"
)

const (
	driverName    = sqliteexternal.DriverName
	driverType    = sqliteexternal.DriverType
	driverPackage = sqliteexternal.DriverPackage + " (via contrib/sqlite-external)"
)
