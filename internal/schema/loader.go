package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Load reads table and column definitions from the serving database's
// information schema. The catalog is fixed for the process lifetime; callers
// load once at startup.
func Load(ctx context.Context, db *sql.DB) (*Catalog, error) {
	query := `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = 'main'
ORDER BY table_name, ordinal_position`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query information schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []Table
	byName := map[string]int{}
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scan column definition: %w", err)
		}

		column := Column{
			Name:     columnName,
			Type:     strings.ToUpper(dataType),
			Nullable: strings.EqualFold(isNullable, "YES"),
		}
		index, ok := byName[tableName]
		if !ok {
			byName[tableName] = len(tables)
			tables = append(tables, Table{Name: tableName, Columns: []Column{column}})
			continue
		}
		tables[index].Columns = append(tables[index].Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column definitions: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables found in serving database")
	}

	return NewCatalog(tables)
}
