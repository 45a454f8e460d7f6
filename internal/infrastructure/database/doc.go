// Package database provides the SQLite connection used by every repository.
//
// It covers:
//   - opening the file with foreign keys on, WAL and a busy timeout
//   - embedded, versioned migrations (see the top-level migrations package)
//   - a WithTx helper for the multi-row writes (cascading area deletes,
//     type resets, project removal)
//
// The pool is capped at one connection. Repositories rely on this for the
// compare-and-swap version updates: two writers never interleave inside a
// single statement, and the loser of a race sees zero affected rows.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
