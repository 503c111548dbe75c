// migrate provisions the destination schema: it applies the .sql files of
// the migrations directory in lexical order, recording each applied file
// in realmsync_migrations so reruns only pick up new ones.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/chatforge/realmsync/internal/config"
)

const ledgerDDL = `CREATE TABLE IF NOT EXISTS realmsync_migrations (
	name text PRIMARY KEY,
	applied_at timestamptz NOT NULL DEFAULT now()
)`

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "configuration file")
		dir        = flag.String("dir", "migrations", "directory of .sql migration files")
		listOnly   = flag.Bool("list", false, "show migration status without applying")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	if _, err := db.Exec(ledgerDDL); err != nil {
		log.Fatalf("create migration ledger: %v", err)
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		log.Fatalf("read migration ledger: %v", err)
	}
	files, err := migrationFiles(*dir)
	if err != nil {
		log.Fatalf("read migrations dir %s: %v", *dir, err)
	}

	if *listOnly {
		for _, f := range files {
			status := "pending"
			if applied[f] {
				status = "applied"
			}
			fmt.Printf("  %-10s %s\n", status, f)
		}
		fmt.Printf("Total: %d applied, %d pending\n",
			len(files)-len(pending(files, applied)), len(pending(files, applied)))
		return
	}

	todo := pending(files, applied)
	if len(todo) == 0 {
		log.Println("Nothing to apply")
		return
	}
	for _, f := range todo {
		if err := apply(db, *dir, f); err != nil {
			log.Fatalf("migration %s: %v", f, err)
		}
		log.Printf("applied %s", f)
	}
	log.Printf("Done: %d migrations applied", len(todo))
}

// apply runs one migration file and records it, in a single transaction,
// so a failed migration leaves the ledger untouched.
func apply(db *sql.DB, dir, name string) error {
	data, err := os.ReadFile(dir + "/" + name)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(data)); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec("INSERT INTO realmsync_migrations (name) VALUES ($1)", name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func appliedMigrations(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT name FROM realmsync_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	applied := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// migrationFiles lists the directory's .sql files in the order they will
// run.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// pending returns the files not yet recorded in the ledger, preserving
// run order.
func pending(files []string, applied map[string]bool) []string {
	var out []string
	for _, f := range files {
		if !applied[f] {
			out = append(out, f)
		}
	}
	return out
}
