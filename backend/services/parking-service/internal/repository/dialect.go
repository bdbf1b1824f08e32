package repository

import (
	"strconv"
	"strings"

	libdb "parkledger/backend/libs/db"
)

type dialect struct {
	name      string
	createSQL string
	numbered  bool
}

var (
	sqliteDialect = dialect{
		name: libdb.DriverSQLite,
		createSQL: `
			CREATE TABLE IF NOT EXISTS vehicles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				license_plate TEXT,
				entry_time TEXT,
				exit_time TEXT,
				amount_due INTEGER
			)`,
	}

	postgresDialect = dialect{
		name: libdb.DriverPostgres,
		createSQL: `
			CREATE TABLE IF NOT EXISTS vehicles (
				id BIGSERIAL PRIMARY KEY,
				license_plate TEXT,
				entry_time TEXT,
				exit_time TEXT,
				amount_due BIGINT
			)`,
		numbered: true,
	}
)

const createOpenIndexSQL = `
	CREATE INDEX IF NOT EXISTS idx_vehicles_open_plate
	ON vehicles (license_plate, entry_time)
	WHERE exit_time IS NULL`

func dialectFor(driver string) dialect {
	if driver == libdb.DriverPostgres {
		return postgresDialect
	}
	return sqliteDialect
}

// rebind turns ? placeholders into $n for drivers that need numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
