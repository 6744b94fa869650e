// Command minidb runs a SQL script and writes query results to a file.
//
// Usage:
//
//	minidb [-data-dir DIR] <input.sql> <output.csv>
//
// Database files (<name>.db) are read from and written to DIR, which
// defaults to $MINIDB_DATA_DIR or the current directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/minidb/minidb"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("minidb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", envOr("MINIDB_DATA_DIR", "."), "Directory holding <name>.db files")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: minidb [-data-dir DIR] <input.sql> <output.csv>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := log.New(stderr, "minidb: ", 0)
	if _, err := minidb.RunFiles(ctx, fs.Arg(0), fs.Arg(1), minidb.Config{
		DataDir: *dataDir,
		Logger:  logger,
	}); err != nil {
		logger.Printf("%v", err)
	}
	return 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
