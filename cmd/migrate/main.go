package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/JustADataConstruct/TermRSS/internal/config"
	"github.com/JustADataConstruct/TermRSS/migrations"
)

const usage = `Usage: migrate [-db path] <command>

Commands:
  up          Migrate to the latest version
  up-one      Migrate one version up
  down        Roll back one version
  status      Show migration status
  version     Show current version
  reset       Roll back all migrations
`

func main() {
	dbPath := flag.String("db", defaultDatabasePath(), "path to sqlite database")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err := run(context.Background(), *dbPath, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dbPath, cmd string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	p, err := migrations.NewProvider(db)
	if err != nil {
		return err
	}

	var results []*goose.MigrationResult
	switch cmd {
	case "up":
		results, err = p.Up(ctx)
	case "up-one":
		var r *goose.MigrationResult
		r, err = p.UpByOne(ctx)
		results = append(results, r)
	case "down":
		var r *goose.MigrationResult
		r, err = p.Down(ctx)
		results = append(results, r)
	case "reset":
		results, err = p.DownTo(ctx, 0)
	case "status":
		return printStatus(ctx, p)
	case "version":
		v, err := p.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		fmt.Printf("version %d\n", v)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}

	if len(results) == 0 {
		fmt.Println("no migrations to apply")
	}
	for _, r := range results {
		if r != nil {
			fmt.Println(r.String())
		}
	}
	return nil
}

func printStatus(ctx context.Context, p *goose.Provider) error {
	statuses, err := p.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	for _, st := range statuses {
		applied := "pending"
		if st.State == goose.StateApplied {
			applied = st.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-20s %s\n", applied, filepath.Base(st.Source.Path))
	}
	return nil
}

// defaultDatabasePath mirrors the location used by the sqlite store backend,
// honouring TERMRSS_DATABASE_PATH.
func defaultDatabasePath() string {
	if v := os.Getenv("TERMRSS_DATABASE_PATH"); v != "" {
		return v
	}
	dir, err := config.Dir()
	if err != nil {
		return "termrss.db"
	}
	return filepath.Join(dir, "termrss.db")
}
