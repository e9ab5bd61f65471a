// Package bunstore implements store.Store using the Bun ORM with the
// PostgreSQL dialect, for applications that already share a *bun.DB.
//
// The caller owns the *bun.DB lifecycle; bunstore never closes it:
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	s := bunstore.New(db)
//	if err := s.Migrate(ctx); err != nil {
//	    return err
//	}
//
// The schema is the one used by store/postgres, so both backends can point
// at the same database.
package bunstore
