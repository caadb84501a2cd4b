// Package sql provides the database/sql connection layer used by the SQL
// graph store (see package sqlgraph).
//
// Queries are written with "?" placeholders and rebound for the target
// dialect, so one query text serves PostgreSQL, MySQL and SQLite:
//
//	drv, err := sql.Open(dialect.SQLite, "file:graph?mode=memory&cache=shared")
//	if err != nil {
//	    return err
//	}
//	var labels string
//	err = drv.ScanOne(ctx, "SELECT labels FROM ogm_nodes WHERE id = ?", []any{id}, &labels)
//
// # Transactions
//
// BeginTx returns a Tx that embeds the same Conn methods:
//
//	tx, err := drv.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	if _, err := tx.Exec(ctx, "DELETE FROM ogm_relationships WHERE id = ?", rid); err != nil {
//	    return errors.Join(err, tx.Rollback())
//	}
//	return tx.Commit()
package sql
