// Package seed creates the retail schema in a DuckDB file and fills it
// with deterministic sample data for local development and demos.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var schemaStatements = []string{
	`CREATE OR REPLACE TABLE stores (
	id INTEGER NOT NULL,
	name VARCHAR NOT NULL,
	city VARCHAR NOT NULL
)`,
	`CREATE OR REPLACE TABLE customers (
	id INTEGER NOT NULL,
	name VARCHAR NOT NULL,
	email VARCHAR NOT NULL,
	city VARCHAR NOT NULL
)`,
	`CREATE OR REPLACE TABLE products (
	id INTEGER NOT NULL,
	name VARCHAR NOT NULL,
	category VARCHAR NOT NULL,
	price DOUBLE NOT NULL
)`,
	`CREATE OR REPLACE TABLE orders (
	id INTEGER NOT NULL,
	customer_id INTEGER NOT NULL,
	store_id INTEGER NOT NULL,
	order_date DATE NOT NULL,
	status VARCHAR NOT NULL
)`,
	`CREATE OR REPLACE TABLE order_items (
	id INTEGER NOT NULL,
	order_id INTEGER NOT NULL,
	product_id INTEGER NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price DOUBLE NOT NULL
)`,
}

// Apply creates the retail tables and loads the dataset in a single
// transaction. Existing tables with the same names are replaced.
func Apply(ctx context.Context, db *sql.DB, dataset Dataset) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range schemaStatements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	if err := insertStores(ctx, tx, dataset.Stores); err != nil {
		return err
	}
	if err := insertCustomers(ctx, tx, dataset.Customers); err != nil {
		return err
	}
	if err := insertProducts(ctx, tx, dataset.Products); err != nil {
		return err
	}
	if err := insertOrders(ctx, tx, dataset.Orders); err != nil {
		return err
	}
	if err := insertOrderItems(ctx, tx, dataset.OrderItems); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}
	return nil
}

func insertStores(ctx context.Context, tx *sql.Tx, stores []Store) error {
	args := make([]any, 0, len(stores)*3)
	for _, store := range stores {
		args = append(args, store.ID, store.Name, store.City)
	}
	return insertRows(ctx, tx, "stores", 3, len(stores), args)
}

func insertCustomers(ctx context.Context, tx *sql.Tx, customers []Customer) error {
	args := make([]any, 0, len(customers)*4)
	for _, customer := range customers {
		args = append(args, customer.ID, customer.Name, customer.Email, customer.City)
	}
	return insertRows(ctx, tx, "customers", 4, len(customers), args)
}

func insertProducts(ctx context.Context, tx *sql.Tx, products []Product) error {
	args := make([]any, 0, len(products)*4)
	for _, product := range products {
		args = append(args, product.ID, product.Name, product.Category, product.Price)
	}
	return insertRows(ctx, tx, "products", 4, len(products), args)
}

func insertOrders(ctx context.Context, tx *sql.Tx, orders []Order) error {
	args := make([]any, 0, len(orders)*5)
	for _, order := range orders {
		args = append(args, order.ID, order.CustomerID, order.StoreID, order.OrderDate.Format("2006-01-02"), order.Status)
	}
	return insertRows(ctx, tx, "orders", 5, len(orders), args)
}

func insertOrderItems(ctx context.Context, tx *sql.Tx, items []OrderItem) error {
	args := make([]any, 0, len(items)*5)
	for _, item := range items {
		args = append(args, item.ID, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
	}
	return insertRows(ctx, tx, "order_items", 5, len(items), args)
}

// insertRows issues multi-row INSERTs in chunks so the placeholder count
// stays bounded regardless of dataset size.
func insertRows(ctx context.Context, tx *sql.Tx, table string, columns, rows int, args []any) error {
	const maxRowsPerInsert = 500

	for offset := 0; offset < rows; offset += maxRowsPerInsert {
		count := rows - offset
		if count > maxRowsPerInsert {
			count = maxRowsPerInsert
		}

		placeholders := make([]string, count)
		row := "(" + strings.TrimSuffix(strings.Repeat("?, ", columns), ", ") + ")"
		for i := range placeholders {
			placeholders[i] = row
		}

		statement := fmt.Sprintf("INSERT INTO %s VALUES %s", table, strings.Join(placeholders, ", "))
		chunk := args[offset*columns : (offset+count)*columns]
		if _, err := tx.ExecContext(ctx, statement, chunk...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return nil
}
