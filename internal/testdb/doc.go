// Package testdb provides database helpers for tests.
//
// OpenSQLite returns a migrated in-memory SQLite database and is what most
// tests use. OpenPostgres connects to the database named by
// MEALPLAN_TEST_DATABASE_URL (or DATABASE_URL) and skips the test when
// neither is set, so integration tests stay out of the standard test run:
//
//	func TestSomethingAgainstPostgres(t *testing.T) {
//	    db := testdb.OpenPostgres(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        // writes are rolled back when fn returns
//	    })
//	}
package testdb
