// Package graph defines the versioned document shapes exchanged with
// opsgraph: bulk import documents and audit journal lines.
package graph

import _ "embed"

const (
	ImportSchemaID      = "opsgraph.graph_import"
	ImportSchemaVersion = "1.0.0"
)

//go:embed import.schema.json
var ImportSchema []byte

//go:embed audit_entry.schema.json
var AuditEntrySchema []byte

type ImportDocument struct {
	SchemaID      string          `json:"schema_id"`
	SchemaVersion string          `json:"schema_version"`
	Nodes         []ImportNode    `json:"nodes,omitempty"`
	Edges         []ImportEdge    `json:"edges,omitempty"`
	Statuses      []ImportStatus  `json:"statuses,omitempty"`
	Projects      []ImportProject `json:"projects,omitempty"`
}

type ImportNode struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Category string         `json:"category"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data,omitempty"`
}

type ImportEdge struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Label  string         `json:"label,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

type ImportStatus struct {
	NodeID string `json:"node_id"`
	Status string `json:"status"`
}

type ImportProject struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Author  string         `json:"author,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	NodeIDs []string       `json:"node_ids,omitempty"`
}
