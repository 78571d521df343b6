package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidahmann/opsgraph/core/graph"
	"github.com/davidahmann/opsgraph/core/model"
)

func TestNodeAndEdgeCommands(t *testing.T) {
	db := tempDB(t)
	admin := []string{"--actor", "admin", "--ip", "10.1.1.1"}

	added := runJSON(t, db, exitOK, append([]string{"node", "add", "n1", "--label", "Checkout", "--category", "business", "--type", "server", "--data", `{"tier":"gold"}`}, admin...)...)
	var change changeResult
	if err := json.Unmarshal(added.Result, &change); err != nil || !change.Changed {
		t.Fatalf("unexpected add result: %s err=%v", added.Result, err)
	}
	runJSON(t, db, exitOK, append([]string{"node", "add", "n2", "--label", "Orders", "--category", "infrastructure", "--type", "database"}, admin...)...)

	got := runJSON(t, db, exitOK, "node", "get", "n1")
	var node model.Node
	if err := json.Unmarshal(got.Result, &node); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	if node.Label != "Checkout" || node.Category != model.CategoryBusiness || node.Data["tier"] != "gold" {
		t.Fatalf("unexpected node: %+v", node)
	}

	runJSON(t, db, exitOK, append([]string{"edge", "add", "n1", "n2", "--label", "reads"}, admin...)...)
	cycle := runJSON(t, db, exitOK, append([]string{"edge", "add", "n2", "n1"}, admin...)...)
	if err := json.Unmarshal(cycle.Result, &change); err != nil || change.Changed {
		t.Fatalf("cycle edge must be refused: %s", cycle.Result)
	}
	listed := runJSON(t, db, exitOK, "edge", "list")
	var edges []model.Edge
	if err := json.Unmarshal(listed.Result, &edges); err != nil || len(edges) != 1 || edges[0].ID != "n1->n2" {
		t.Fatalf("unexpected edges: %s err=%v", listed.Result, err)
	}

	runJSON(t, db, exitOK, append([]string{"node", "update", "n1", "--label", "Checkout v2"}, admin...)...)
	got = runJSON(t, db, exitOK, "node", "get", "n1")
	if err := json.Unmarshal(got.Result, &node); err != nil || node.Label != "Checkout v2" || node.Data["tier"] != "gold" {
		t.Fatalf("update must keep unspecified fields: %+v err=%v", node, err)
	}

	parents := runJSON(t, db, exitOK, "node", "parents", "n2")
	var nodes []model.Node
	if err := json.Unmarshal(parents.Result, &nodes); err != nil || len(nodes) != 1 || nodes[0].ID != "n1" {
		t.Fatalf("unexpected parents: %s", parents.Result)
	}

	runJSON(t, db, exitOK, append([]string{"node", "delete", "n1"}, admin...)...)
	missing := runJSON(t, db, exitNotFound, "node", "get", "n1")
	if missing.ErrorCategory != "not_found" {
		t.Fatalf("unexpected missing output: %+v", missing)
	}
	listed = runJSON(t, db, exitOK, "edge", "list")
	if err := json.Unmarshal(listed.Result, &edges); err != nil || len(edges) != 0 {
		t.Fatalf("expected cascaded edges, got %s", listed.Result)
	}
}

func TestCallerResolution(t *testing.T) {
	db := tempDB(t)

	denied := runJSON(t, db, exitPermissionDenied, "node", "add", "n1", "--label", "x", "--category", "network", "--type", "network")
	if denied.ErrorCode != "permission_denied" || denied.ErrorCategory != "permission_denied" {
		t.Fatalf("unexpected denial: %+v", denied)
	}
	runJSON(t, db, exitPermissionDenied, "node", "add", "n1", "--label", "x", "--category", "network", "--type", "network", "--actor", "admin", "--role", "consumer")
	runJSON(t, db, exitOK, "node", "add", "n1", "--label", "x", "--category", "network", "--type", "network", "--actor", "admin", "--role", "contributor")

	elevated := runJSON(t, db, exitPermissionDenied, "node", "add", "n9", "--label", "x", "--category", "network", "--type", "network", "--role", "admin")
	if elevated.ErrorCategory != "permission_denied" || !strings.Contains(elevated.Error, "exceeds") {
		t.Fatalf("unexpected elevation result: %+v", elevated)
	}

	runJSON(t, db, exitOK, "user", "add", "carol", "contributor", "--actor", "admin")
	runJSON(t, db, exitOK, "node", "add", "n2", "--label", "y", "--category", "network", "--type", "network", "--actor", "carol")
	runJSON(t, db, exitPermissionDenied, "user", "update", "carol", "admin", "--actor", "carol")
	runJSON(t, db, exitPermissionDenied, "user", "update", "carol", "admin", "--actor", "carol", "--role", "admin")
	runJSON(t, db, exitOK, "user", "add", "robot", "contributor", "--actor", "admin")
	runJSON(t, db, exitInvalidInput, "node", "list", "--role", "root")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	config := "caller:\n  actor: robot\n  role: contributor\naudit:\n  default_limit: 2\n"
	if err := os.WriteFile(configPath, []byte(config), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	runJSON(t, db, exitOK, "status", "set", "n1", "healthy", "--config", configPath)
	logs := runJSON(t, db, exitOK, "logs", "--config", configPath)
	var entries []model.AuditEntry
	if err := json.Unmarshal(logs.Result, &entries); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(entries) != 2 || entries[0].EntityType != model.EntityStatus || entries[0].ActorID != "robot" {
		t.Fatalf("unexpected logs: %+v", entries)
	}
	runJSON(t, db, exitInvalidInput, "node", "list", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestProjectCommandsAndGraphExport(t *testing.T) {
	db := tempDB(t)
	admin := []string{"--actor", "admin"}
	for _, id := range []string{"n1", "n2", "n3"} {
		runJSON(t, db, exitOK, append([]string{"node", "add", id, "--label", id, "--category", "application", "--type", "application"}, admin...)...)
	}
	runJSON(t, db, exitOK, append([]string{"edge", "add", "n1", "n2"}, admin...)...)
	runJSON(t, db, exitOK, append([]string{"edge", "add", "n2", "n3"}, admin...)...)

	created := runJSON(t, db, exitOK, append([]string{"project", "add", "--id", "p1", "--name", "Checkout", "--nodes", "n1"}, admin...)...)
	var project model.Project
	if err := json.Unmarshal(created.Result, &project); err != nil || project.Author != "admin" || strings.Join(project.NodeIDs, ",") != "n1" {
		t.Fatalf("unexpected project: %s err=%v", created.Result, err)
	}
	runJSON(t, db, exitNotFound, append([]string{"project", "add", "--id", "p2", "--name", "Ghost", "--nodes", "ghost"}, admin...)...)

	view := runJSON(t, db, exitOK, "project", "graph", "p1")
	var graphView model.GraphView
	if err := json.Unmarshal(view.Result, &graphView); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if strings.Join(graphView.NodeIDs(), ",") != "n1,n2,n3" || graphView.Edges[1].Depth != 1 {
		t.Fatalf("unexpected project graph: %+v", graphView)
	}

	runJSON(t, db, exitOK, append([]string{"project", "attach", "p1", "n3"}, admin...)...)
	runJSON(t, db, exitOK, append([]string{"project", "update", "p1", "--name", "Checkout v2"}, admin...)...)
	got := runJSON(t, db, exitOK, "project", "get", "p1")
	if err := json.Unmarshal(got.Result, &project); err != nil || project.Name != "Checkout v2" || strings.Join(project.NodeIDs, ",") != "n1,n3" {
		t.Fatalf("unexpected updated project: %s err=%v", got.Result, err)
	}

	out := filepath.Join(t.TempDir(), "export", "graph.json")
	runJSON(t, db, exitOK, "graph", "--out", out)
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var export graphExport
	if err := json.Unmarshal(raw, &export); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(export.Nodes) != 3 || len(export.Edges) != 2 || len(export.Statuses) != 3 {
		t.Fatalf("unexpected export: %+v", export)
	}

	runJSON(t, db, exitOK, append([]string{"project", "delete", "p1"}, admin...)...)
	runJSON(t, db, exitNotFound, "project", "graph", "p1")
}

func TestImportAndJournalVerify(t *testing.T) {
	workDir := t.TempDir()
	db := filepath.Join(workDir, "graph.db")
	journal := filepath.Join(workDir, "audit.jsonl")
	configPath := filepath.Join(workDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("audit:\n  mirror_path: "+journal+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	fixture := filepath.Join("..", "..", "core", "schema", "testdata", "import_valid.json")

	runJSON(t, db, exitOK, "user", "add", "loader", "contributor", "--actor", "admin")
	imported := runJSON(t, db, exitOK, "import", fixture, "--role", "contributor", "--actor", "loader", "--config", configPath)
	var summary graph.ImportSummary
	if err := json.Unmarshal(imported.Result, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.NodesInserted != 3 || summary.EdgesInserted != 2 || summary.ProjectsInserted != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	invalid := filepath.Join("..", "..", "core", "schema", "testdata", "import_invalid.json")
	runJSON(t, db, exitInvalidInput, "import", invalid, "--actor", "loader")

	statuses := runJSON(t, db, exitOK, "status", "get", "db")
	var status model.Status
	if err := json.Unmarshal(statuses.Result, &status); err != nil || status.Status != model.StatusMaintenance {
		t.Fatalf("unexpected status: %s err=%v", statuses.Result, err)
	}

	runJSON(t, db, exitOK, "logs", "verify", journal)
	bad := filepath.Join(workDir, "bad.jsonl")
	if err := os.WriteFile(bad, []byte("{\"id\":1}\n"), 0o600); err != nil {
		t.Fatalf("write bad journal: %v", err)
	}
	runJSON(t, db, exitInvalidInput, "logs", "verify", bad)
}

func TestTextOutput(t *testing.T) {
	db := tempDB(t)
	var code int
	output := captureStdout(t, func() {
		code = run([]string{"opsgraph", "node", "add", "lb", "--label", "Load balancer", "--category", "network", "--type", "network", "--actor", "admin", "--db", db})
	})
	if code != exitOK || !strings.Contains(output, "node lb: changed") {
		t.Fatalf("unexpected text output (%d): %q", code, output)
	}
	output = captureStdout(t, func() {
		code = run([]string{"opsgraph", "status", "list", "--db", db})
	})
	if code != exitOK || strings.TrimSpace(output) != "lb\tunknown" {
		t.Fatalf("unexpected status output (%d): %q", code, output)
	}
}

func TestDoctorCommand(t *testing.T) {
	db := tempDB(t)
	missing := runJSON(t, db, exitOK, "doctor")
	var report struct {
		Status      string   `json:"status"`
		FixCommands []string `json:"fix_commands"`
	}
	if err := json.Unmarshal(missing.Result, &report); err != nil {
		t.Fatalf("decode doctor result: %v", err)
	}
	if report.Status != "warn" || len(report.FixCommands) == 0 {
		t.Fatalf("expected warn with fixes for a missing database, got %s", missing.Result)
	}

	runJSON(t, db, exitOK, "node", "add", "n1", "--label", "Edge", "--category", "network", "--type", "network", "--actor", "admin")
	healthy := runJSON(t, db, exitOK, "doctor")
	if err := json.Unmarshal(healthy.Result, &report); err != nil {
		t.Fatalf("decode doctor result: %v", err)
	}
	if !healthy.OK || report.Status != "pass" {
		t.Fatalf("expected healthy database, got %s", healthy.Result)
	}

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("log:\n  format: xml\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	broken := runJSON(t, db, exitInternalFailure, "doctor", "--config", configPath)
	if broken.OK {
		t.Fatalf("expected failed doctor run, got %s", broken.Result)
	}
}

func TestNodeCategoriesAndTypes(t *testing.T) {
	db := tempDB(t)
	categories := runJSON(t, db, exitOK, "node", "categories")
	var names []string
	if err := json.Unmarshal(categories.Result, &names); err != nil || strings.Join(names, ",") != "business,application,infrastructure,network" {
		t.Fatalf("unexpected categories: %s err=%v", categories.Result, err)
	}
	types := runJSON(t, db, exitOK, "node", "types")
	if err := json.Unmarshal(types.Result, &names); err != nil || strings.Join(names, ",") != "server,database,application,network" {
		t.Fatalf("unexpected types: %s err=%v", types.Result, err)
	}
}
