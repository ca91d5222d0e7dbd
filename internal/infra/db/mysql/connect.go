package mysql

import (
	"context"
	"database/sql"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/rotisserie/eris"
)

// Connect opens a pool. Timestamps are always parsed and stored as UTC,
// whatever the DSN says.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	mc, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: parse dsn")
	}
	mc.ParseTime = true
	mc.Loc = time.UTC

	connector, err := driver.NewConnector(mc)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: connector")
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "mysql: ping")
	}
	return db, nil
}
