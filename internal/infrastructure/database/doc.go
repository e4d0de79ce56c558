// Package database opens the node's SQLite file and keeps its schema
// current.
//
// The store holds connectivity events and publish readings for the status
// API. It is local to the device, so the connection pool is a single
// connection and WAL mode is on by default.
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx, migrations.FS)
//
// Migrations are YYYYMMDD_HHMMSS_name.up.sql files and only ever add:
// new columns are NULLABLE or carry a DEFAULT, nothing is dropped or
// renamed. The file is chmod 0600 after opening.
package database
