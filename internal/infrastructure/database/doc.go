// Package database manages the on-brick SQLite file that stores the
// motion history.
//
// The file lives on the brick's SD card and is opened in WAL mode so
// history queries never block the bridge writing a finished motion.
// Schema migrations are embedded in the binary (see the migrations
// package) and applied on startup; the daemon is self-contained on a
// freshly flashed brick.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive only: new columns must be nullable or carry a
// default, and each migration ships both .up.sql and .down.sql. A brick
// running an older binary against a newer database must keep working.
package database
