package sqllite

import (
	"database/sql"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dealerflow/dealerflow/internal/migrations"
)

var fileSeq int32 = 0

func nextFileSeq() int {
	return int(atomic.AddInt32(&fileSeq, 1))
}

func runTestWithSetup(t *testing.T, testFunc func(t *testing.T, db *sql.DB)) {
	filename := fmt.Sprintf("dealerflow-test-%d.db", nextFileSeq())
	defer os.Remove(filename)

	os.Setenv("DFLOW_DATABASE_TYPE", "SQLLITE")
	os.Setenv("DFLOW_DATABASE_SQLLITE_FILE_NAME", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Apply the embedded schema directly, the tests wire the engine by hand
	// instead of going through the full app setup.
	schema, err := migrations.FS.ReadFile("sqllite3/000001_init.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("Failed to apply migration: %v", err)
	}

	testFunc(t, db)
}
