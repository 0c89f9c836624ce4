package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tablechat/tablechat/internal/seed"
)

func main() {
	path := flag.String("db", "retail.duckdb", "DuckDB file to create or replace tables in")
	flag.Parse()

	cfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if raw := os.Getenv("TABLECHAT_DB_PATH"); raw != "" && !isFlagSet("db") {
		*path = raw
	}

	db, err := sql.Open("duckdb", *path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "database ping error: %v\n", err)
		os.Exit(1)
	}

	dataset := seed.BuildDataset(cfg)
	if err := seed.Apply(ctx, db, dataset); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeded %s: %d stores, %d customers, %d products, %d orders, %d order items\n",
		*path, len(dataset.Stores), len(dataset.Customers), len(dataset.Products),
		len(dataset.Orders), len(dataset.OrderItems))
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
