package schema

import (
	"fmt"
	"sort"
	"strings"
)

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Catalog is the immutable description of the queryable schema. It is loaded
// once at startup and shared read-only by the translator and the validator.
type Catalog struct {
	tables  []Table
	byTable map[string]int
}

func NewCatalog(tables []Table) (*Catalog, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}

	catalog := &Catalog{
		tables:  make([]Table, 0, len(tables)),
		byTable: make(map[string]int, len(tables)),
	}
	for _, table := range tables {
		name := strings.ToLower(strings.TrimSpace(table.Name))
		if name == "" {
			return nil, fmt.Errorf("table name is required")
		}
		if _, exists := catalog.byTable[name]; exists {
			return nil, fmt.Errorf("duplicate table %q", name)
		}
		if len(table.Columns) == 0 {
			return nil, fmt.Errorf("table %q has no columns", name)
		}

		columns := make([]Column, 0, len(table.Columns))
		seen := make(map[string]struct{}, len(table.Columns))
		for _, column := range table.Columns {
			columnName := strings.ToLower(strings.TrimSpace(column.Name))
			if columnName == "" {
				return nil, fmt.Errorf("table %q has a column with no name", name)
			}
			if _, exists := seen[columnName]; exists {
				return nil, fmt.Errorf("table %q has duplicate column %q", name, columnName)
			}
			seen[columnName] = struct{}{}
			columns = append(columns, Column{Name: columnName, Type: column.Type, Nullable: column.Nullable})
		}

		catalog.byTable[name] = len(catalog.tables)
		catalog.tables = append(catalog.tables, Table{Name: name, Columns: columns})
	}
	return catalog, nil
}

// Tables returns the catalog contents in load order. The result is a copy.
func (c *Catalog) Tables() []Table {
	out := make([]Table, len(c.tables))
	for i, table := range c.tables {
		columns := make([]Column, len(table.Columns))
		copy(columns, table.Columns)
		out[i] = Table{Name: table.Name, Columns: columns}
	}
	return out
}

func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for _, table := range c.tables {
		names = append(names, table.Name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) HasTable(name string) bool {
	_, ok := c.byTable[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (c *Catalog) Table(name string) (Table, bool) {
	index, ok := c.byTable[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Table{}, false
	}
	return c.tables[index], true
}

func (c *Catalog) HasColumn(tableName, columnName string) bool {
	table, ok := c.Table(tableName)
	if !ok {
		return false
	}
	columnName = strings.ToLower(strings.TrimSpace(columnName))
	for _, column := range table.Columns {
		if column.Name == columnName {
			return true
		}
	}
	return false
}

// Describe renders the catalog as compact DDL-like text for prompt embedding.
func (c *Catalog) Describe() string {
	var b strings.Builder
	for i, table := range c.tables {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(table.Name)
		b.WriteString("(")
		for j, column := range table.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(column.Name)
			b.WriteString(" ")
			b.WriteString(column.Type)
			if !column.Nullable {
				b.WriteString(" NOT NULL")
			}
		}
		b.WriteString(")")
	}
	return b.String()
}
