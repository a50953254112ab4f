// Command catalogctl manages the jurisdiction requirements catalog and issues
// bearer tokens for operators.
//
//	catalogctl import <file>        validate a JSON or YAML file and upsert it into Postgres
//	catalogctl export [file]        write the Postgres catalog as JSON (stdout by default)
//	catalogctl token <subject>      print a signed bearer token (-ttl 1h)
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/lib/pq"

	"docbridge/internal/compliance/catalog"
	"docbridge/internal/compliance/catalog/source"
	"docbridge/internal/platform/config"
	"docbridge/pkg/platform/middleware/auth"
)

const usage = "usage: catalogctl import <file> | export [file] | token [-ttl 1h] <subject>"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "catalogctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "import":
		if len(args) != 2 {
			return errors.New(usage)
		}
		return withDB(ctx, cfg, func(db *sql.DB) error {
			n, err := importFile(ctx, db, args[1])
			if err == nil {
				fmt.Fprintf(out, "imported %d jurisdictions\n", n)
			}
			return err
		})
	case "export":
		w := out
		if len(args) == 2 {
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return withDB(ctx, cfg, func(db *sql.DB) error {
			return export(ctx, db, w)
		})
	case "token":
		return issueToken(cfg.Auth, args[1:], out)
	default:
		return errors.New(usage)
	}
}

func withDB(ctx context.Context, cfg config.Config, fn func(*sql.DB) error) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, source.RequirementsSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return fn(db)
}

// importFile checks the records the same way the service will before writing them.
func importFile(ctx context.Context, db *sql.DB, path string) (int, error) {
	records, err := source.NewFileSource(path).Fetch(ctx)
	if err != nil {
		return 0, err
	}
	check := catalog.New()
	if err := check.Load(records); err != nil {
		return 0, err
	}
	if err := source.NewPostgresSource(db).Upsert(ctx, records); err != nil {
		return 0, err
	}
	return check.Len(), nil
}

func export(ctx context.Context, db *sql.DB, w io.Writer) error {
	records, err := source.NewPostgresSource(db).Fetch(ctx)
	if err != nil {
		return err
	}
	data, err := source.Encode(records)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func issueToken(cfg config.Auth, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *ttl <= 0 {
		return errors.New(usage)
	}
	v, err := auth.NewHMACValidator(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return err
	}
	token, err := v.Issue(fs.Arg(0), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
