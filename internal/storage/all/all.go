// Package all registers every storage backend with the storage factory.
//
// Binaries blank-import this package; configuration selects the backend kind
// at runtime.
package all

import (
	// The mssql backend opens the "sqlserver" database/sql driver but does not
	// register it itself.
	_ "github.com/microsoft/go-mssqldb"

	_ "salesdw/internal/storage/mssql"
	_ "salesdw/internal/storage/postgres"
	_ "salesdw/internal/storage/sqlite"
)
