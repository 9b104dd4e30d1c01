// Package database opens the SQLite file backing the device registry and
// applies the embedded schema migrations.
//
// The connection runs in WAL mode with a busy timeout and a single open
// connection. Migrations are read from any fs.FS (normally migrations.FS)
// and recorded in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
