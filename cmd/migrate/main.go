// Applies the schema for the deliverability checker: email_logs,
// email_events and email_stats.
//
// Usage:
//
//	migrate [dir]        apply every *.sql in dir (default "migrations")
//	migrate --list       show which of the expected tables exist
//	migrate --down       drop the three tables (full teardown)
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

// Drop order respects the email_events -> email_logs foreign key.
var tables = []string{"email_events", "email_logs", "email_stats"}

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	mode := "up"
	for _, a := range os.Args[1:] {
		switch a {
		case "--list":
			mode = "list"
		case "--down":
			mode = "down"
		default:
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	switch mode {
	case "list":
		listTables(db)
	case "down":
		tearDown(db)
	default:
		applyAll(db, dir)
	}
}

// listTables reports which of the expected tables are present, so a
// fresh deploy can tell at a glance whether migrations ran.
func listTables(db *sql.DB) {
	missing := 0
	for _, table := range tables {
		var exists bool
		err := db.QueryRow(
			"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE schemaname='public' AND tablename=$1)",
			table,
		).Scan(&exists)
		if err != nil {
			log.Fatalf("check %s: %v", table, err)
		}
		if exists {
			fmt.Printf("  %s\n", table)
		} else {
			fmt.Printf("  %s (missing)\n", table)
			missing++
		}
	}
	if missing > 0 {
		fmt.Printf("%d of %d tables missing, run migrations\n", missing, len(tables))
	}
}

// tearDown drops every table in one transaction. This is the uninstall
// path: logs, events and counters are gone for good.
func tearDown(db *sql.DB) {
	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("begin teardown: %v", err)
	}
	for _, table := range tables {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			tx.Rollback()
			log.Fatalf("drop %s: %v", table, err)
		}
		fmt.Printf("  dropped %s\n", table)
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("commit teardown: %v", err)
	}
	log.Println("Teardown complete")
}

// applyAll runs every migration file in lexical order, each in its own
// transaction. Migrations are written to be re-runnable, so a partial
// failure can be fixed and the whole set applied again.
func applyAll(db *sql.DB, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("read migrations dir %s: %v", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var okCount, errCount int
	for _, f := range files {
		path := filepath.Join(dir, f)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Printf("  %s ... ", f)

		tx, err := db.Begin()
		if err != nil {
			fmt.Printf("BEGIN ERROR: %v\n", err)
			errCount++
			continue
		}
		if _, err := tx.Exec(content); err != nil {
			tx.Rollback()
			fmt.Printf("ERROR: %v\n", err)
			errCount++
		} else {
			tx.Commit()
			fmt.Println("OK")
			okCount++
		}
	}
	log.Printf("Done: %d OK, %d errors", okCount, errCount)
}
