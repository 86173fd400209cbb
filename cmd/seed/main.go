package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/reviewloop/reviewloop/internal/env"
	"github.com/reviewloop/reviewloop/internal/store"
)

// seed loads recorded root spans from JSONL files into the database, one span
// object per line. Useful for local development and demo environments.
func main() {
	dir := flag.String("dir", "", "directory containing .jsonl span files to seed")
	databaseURL := flag.String("database-url", env.Str("DATABASE_URL", "postgres://localhost:5432/reviewloop?sslmode=disable"), "Postgres connection string")
	batchSize := flag.Int("batch-size", 100, "spans per insert statement")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: seed --dir ./samples/spans/")
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	st, err := store.Open(*databaseURL)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	files, err := filepath.Glob(filepath.Join(*dir, "*.jsonl"))
	if err != nil {
		slog.Error("glob files", "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no .jsonl files found in", *dir)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var total int64
	for _, f := range files {
		n, seedErr := seedFile(ctx, st, f, *batchSize)
		if seedErr != nil {
			slog.Error("seed file", "file", f, "error", seedErr)
			continue
		}
		total += n
		slog.Info("seeded", "file", f, "spans", n)
	}

	slog.Info("done", "total_spans", total, "files", len(files))
}

func seedFile(ctx context.Context, st *store.Store, path string, batchSize int) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var total int64
	var pending []store.RootSpan
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var span store.RootSpan
		if err := json.Unmarshal(line, &span); err != nil {
			return total, fmt.Errorf("decode span: %w", err)
		}
		pending = append(pending, span)

		if len(pending) >= batchSize {
			n, err := st.InsertRootSpans(ctx, pending)
			if err != nil {
				return total, err
			}
			total += n
			pending = pending[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return total, err
	}

	if len(pending) > 0 {
		n, err := st.InsertRootSpans(ctx, pending)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
