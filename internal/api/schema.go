package api

import (
	"net/http"

	"github.com/tablechat/tablechat/internal/schema"
)

type schemaColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type schemaTable struct {
	Name    string         `json:"name"`
	Columns []schemaColumn `json:"columns"`
}

type schemaResponse struct {
	Tables []schemaTable `json:"tables"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema catalog is not configured", false, nil)
		return
	}
	if err := requireRole(r, "chat_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	writeJSON(w, http.StatusOK, schemaResponseFromCatalog(deps.Catalog))
}

func schemaResponseFromCatalog(catalog *schema.Catalog) schemaResponse {
	tables := catalog.Tables()
	response := schemaResponse{Tables: make([]schemaTable, 0, len(tables))}
	for _, table := range tables {
		columns := make([]schemaColumn, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, schemaColumn{
				Name:     column.Name,
				Type:     column.Type,
				Nullable: column.Nullable,
			})
		}
		response.Tables = append(response.Tables, schemaTable{Name: table.Name, Columns: columns})
	}
	return response
}
