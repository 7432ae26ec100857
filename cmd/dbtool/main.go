package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/board-multisig/modules/multisig/infrastructure/persistence"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <migrate|state|events> [args]")
	}

	switch os.Args[1] {
	case "migrate":
		migrate(os.Args[2:])
	case "state":
		state(os.Args[2:])
	case "events":
		events(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

type dbFlags struct {
	url     string
	board   string
	after   int64
	limit   int
	timeout time.Duration
}

func parseDBFlags(name string, args []string, out io.Writer) (dbFlags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	var f dbFlags
	fs.StringVar(&f.url, "url", os.Getenv("DATABASE_URL"), "postgres connection string")
	fs.StringVar(&f.board, "board", "board-main", "board id")
	fs.Int64Var(&f.after, "after", 0, "list events after this sequence number")
	fs.IntVar(&f.limit, "limit", 100, "max events to list")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return dbFlags{}, err
	}
	if f.url == "" {
		return dbFlags{}, errors.New("missing --url")
	}
	if f.board == "" {
		return dbFlags{}, errors.New("missing --board")
	}
	if f.after < 0 || f.limit < 0 {
		return dbFlags{}, errors.New("--after and --limit must not be negative")
	}
	return f, nil
}

func openStore(name string, args []string) (context.Context, context.CancelFunc, *pgxpool.Pool, *persistence.MultisigPGStore, dbFlags) {
	f, err := parseDBFlags(name, args, os.Stderr)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	pool, err := pgxpool.New(ctx, f.url)
	if err != nil {
		cancel()
		fatal(err)
	}
	return ctx, cancel, pool, persistence.NewMultisigPGStore(pool, f.board), f
}

func migrate(args []string) {
	ctx, cancel, pool, store, f := openStore("migrate", args)
	defer cancel()
	defer pool.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		fatal(describePgError(err))
	}
	fmt.Printf("[migrate] OK board=%s\n", f.board)
}

func state(args []string) {
	ctx, cancel, pool, store, f := openStore("state", args)
	defer cancel()
	defer pool.Close()

	s, err := store.LoadState(ctx)
	if err != nil {
		fatal(describePgError(err))
	}
	executed := 0
	for _, a := range s.Actions {
		if a.Executed {
			executed++
		}
	}
	fmt.Printf("[state] board=%s roster=%d actions=%d executed=%d last_seq=%d\n", f.board, len(s.Roster), len(s.Actions), executed, s.LastSeq)
}

func events(args []string) {
	ctx, cancel, pool, store, f := openStore("events", args)
	defer cancel()
	defer pool.Close()

	evs, err := store.ListEvents(ctx, f.after, f.limit)
	if err != nil {
		fatal(describePgError(err))
	}
	enc := json.NewEncoder(os.Stdout)
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			fatal(err)
		}
	}
}

func describePgError(err error) error {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return fmt.Errorf("%s (sqlstate=%s)", pgErr.Message, pgErr.Code)
	}
	return err
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
