package storage

import "database/sql"

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

// WrapSQLRows adapts *sql.Rows to Rows for database/sql backends.
func WrapSQLRows(r *sql.Rows) Rows {
	return sqlRows{Rows: r}
}
