// Package doctor inspects a local opsgraph installation: configuration,
// database health, graph invariants and the audit journal mirror.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/projectconfig"
	"github.com/davidahmann/opsgraph/core/repository"
	schemagraph "github.com/davidahmann/opsgraph/core/schema/v1/graph"
	"github.com/davidahmann/opsgraph/core/schema/validate"
	"github.com/davidahmann/opsgraph/core/store"
)

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

type Options struct {
	ConfigPath      string
	DBPath          string
	ProducerVersion string
	Now             func() time.Time
}

type Result struct {
	SchemaID        string   `json:"schema_id"`
	SchemaVersion   string   `json:"schema_version"`
	CreatedAt       string   `json:"created_at"`
	ProducerVersion string   `json:"producer_version"`
	Status          string   `json:"status"`
	NonFixable      bool     `json:"non_fixable"`
	Summary         string   `json:"summary"`
	FixCommands     []string `json:"fix_commands"`
	Checks          []Check  `json:"checks"`
}

type Check struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	FixCommand string `json:"fix_command,omitempty"`
	NonFixable bool   `json:"non_fixable,omitempty"`
}

func (r Result) Failed() bool {
	return r.Status == statusFail
}

func Run(ctx context.Context, opts Options) Result {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	producerVersion := strings.TrimSpace(opts.ProducerVersion)
	if producerVersion == "" {
		producerVersion = "0.0.0-dev"
	}

	configuration, configCheck := checkConfig(opts.ConfigPath)
	dbPath := strings.TrimSpace(opts.DBPath)
	if dbPath == "" {
		dbPath = configuration.Store.Path
	}
	checks := []Check{
		configCheck,
		checkSchemas(),
		checkStoreDir(dbPath),
	}
	checks = append(checks, checkDatabase(ctx, dbPath, configuration)...)
	checks = append(checks, checkAuditMirror(configuration.Audit.MirrorPath))

	failed := 0
	warned := 0
	nonFixable := false
	fixCommands := make([]string, 0, len(checks))
	seenFixes := map[string]struct{}{}
	for _, check := range checks {
		switch check.Status {
		case statusFail:
			failed++
		case statusWarn:
			warned++
		}
		if check.NonFixable {
			nonFixable = true
		}
		if check.FixCommand != "" {
			if _, ok := seenFixes[check.FixCommand]; !ok {
				seenFixes[check.FixCommand] = struct{}{}
				fixCommands = append(fixCommands, check.FixCommand)
			}
		}
	}

	status := statusPass
	if failed > 0 {
		status = statusFail
	} else if warned > 0 {
		status = statusWarn
	}

	sort.Strings(fixCommands)
	return Result{
		SchemaID:        "opsgraph.doctor.result",
		SchemaVersion:   "1.0.0",
		CreatedAt:       now().UTC().Format(time.RFC3339Nano),
		ProducerVersion: producerVersion,
		Status:          status,
		NonFixable:      nonFixable,
		Summary:         fmt.Sprintf("doctor: status=%s failed=%d warned=%d non_fixable=%t", status, failed, warned, nonFixable),
		FixCommands:     fixCommands,
		Checks:          checks,
	}
}

func checkConfig(path string) (projectconfig.Config, Check) {
	trimmed := strings.TrimSpace(path)
	allowMissing := trimmed == ""
	if allowMissing {
		trimmed = projectconfig.DefaultPath
	}
	configuration, err := projectconfig.Load(trimmed, allowMissing)
	if err != nil {
		return projectconfig.Default(), Check{
			Name:       "config",
			Status:     statusFail,
			Message:    err.Error(),
			FixCommand: fmt.Sprintf("edit %s", shellQuote(trimmed)),
		}
	}
	if _, statErr := os.Stat(trimmed); statErr != nil {
		return configuration, Check{Name: "config", Status: statusPass, Message: "no config file, using defaults"}
	}
	return configuration, Check{Name: "config", Status: statusPass, Message: fmt.Sprintf("config %s is valid", trimmed)}
}

func checkSchemas() Check {
	minimal := []byte(`{"schema_id":"` + schemagraph.ImportSchemaID + `","schema_version":"` + schemagraph.ImportSchemaVersion + `"}`)
	if err := validate.ValidateJSON(schemagraph.ImportSchema, minimal); err != nil {
		return Check{Name: "schemas", Status: statusFail, Message: fmt.Sprintf("import schema unusable: %v", err), NonFixable: true}
	}
	if err := validate.ValidateJSON(schemagraph.AuditEntrySchema, []byte(`{}`)); err == nil {
		return Check{Name: "schemas", Status: statusFail, Message: "audit entry schema accepts an empty entry", NonFixable: true}
	}
	return Check{Name: "schemas", Status: statusPass, Message: "embedded schemas compile"}
}

func checkStoreDir(dbPath string) Check {
	dir := filepath.Dir(dbPath)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Check{
				Name:       "store_dir",
				Status:     statusWarn,
				Message:    "database directory does not exist",
				FixCommand: fmt.Sprintf("mkdir -p %s", shellQuote(dir)),
			}
		}
		return Check{Name: "store_dir", Status: statusFail, Message: fmt.Sprintf("database directory check failed: %v", err)}
	}
	if !info.IsDir() {
		return Check{Name: "store_dir", Status: statusFail, Message: "database directory is not a directory"}
	}
	testPath := filepath.Join(dir, ".opsgraph-doctor-writecheck")
	if err := os.WriteFile(testPath, []byte("ok"), 0o600); err != nil {
		return Check{
			Name:       "store_dir",
			Status:     statusFail,
			Message:    fmt.Sprintf("database directory not writable: %v", err),
			FixCommand: fmt.Sprintf("chmod u+w %s", shellQuote(dir)),
		}
	}
	_ = os.Remove(testPath)
	return Check{Name: "store_dir", Status: statusPass, Message: "database directory is writable"}
}

// checkDatabase opens an existing database and verifies SQLite integrity,
// referential integrity and that the edge set is acyclic. A missing
// database file is only a warning.
func checkDatabase(ctx context.Context, dbPath string, configuration projectconfig.Config) []Check {
	if _, err := os.Stat(dbPath); err != nil {
		return []Check{{
			Name:       "database",
			Status:     statusWarn,
			Message:    fmt.Sprintf("database %s does not exist yet", dbPath),
			FixCommand: fmt.Sprintf("opsgraph graph --db %s", shellQuote(dbPath)),
		}}
	}
	timeout, err := configuration.BusyTimeout()
	if err != nil {
		timeout = store.DefaultBusyTimeout
	}
	opened, err := store.Open(ctx, store.Options{Path: dbPath, BusyTimeout: timeout})
	if err != nil {
		return []Check{{Name: "database", Status: statusFail, Message: fmt.Sprintf("open database: %v", err), NonFixable: true}}
	}
	defer func() { _ = opened.Close() }()

	checks := []Check{checkIntegrity(ctx, opened)}
	checks = append(checks, checkAcyclic(ctx, repository.New(opened.DB(), repository.Options{})))
	return checks
}

func checkIntegrity(ctx context.Context, opened *store.Store) Check {
	var result string
	if err := opened.DB().QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return Check{Name: "database", Status: statusFail, Message: fmt.Sprintf("integrity check: %v", err), NonFixable: true}
	}
	if result != "ok" {
		return Check{Name: "database", Status: statusFail, Message: "integrity check: " + result, NonFixable: true}
	}
	rows, err := opened.DB().QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return Check{Name: "database", Status: statusFail, Message: fmt.Sprintf("foreign key check: %v", err), NonFixable: true}
	}
	defer func() { _ = rows.Close() }()
	violations := 0
	for rows.Next() {
		violations++
	}
	if violations > 0 {
		return Check{Name: "database", Status: statusFail, Message: fmt.Sprintf("%d foreign key violation(s)", violations), NonFixable: true}
	}
	return Check{Name: "database", Status: statusPass, Message: "database integrity ok"}
}

func checkAcyclic(ctx context.Context, repo *repository.Repository) Check {
	edges, err := repo.GetEdges(ctx)
	if err != nil {
		return Check{Name: "graph_acyclic", Status: statusFail, Message: fmt.Sprintf("read edges: %v", err), NonFixable: true}
	}
	if cycle := findCycleNode(edges); cycle != "" {
		return Check{
			Name:       "graph_acyclic",
			Status:     statusFail,
			Message:    fmt.Sprintf("edge set contains a cycle through node %s", cycle),
			FixCommand: "opsgraph edge list",
		}
	}
	return Check{Name: "graph_acyclic", Status: statusPass, Message: fmt.Sprintf("%d edge(s), no cycles", len(edges))}
}

// findCycleNode runs Kahn's algorithm and returns the smallest node id left
// with incoming edges, or "" when the edges form a DAG.
func findCycleNode(edges []model.Edge) string {
	indegree := map[string]int{}
	successors := map[string][]string{}
	for _, edge := range edges {
		successors[edge.Source] = append(successors[edge.Source], edge.Target)
		indegree[edge.Target]++
		if _, ok := indegree[edge.Source]; !ok {
			indegree[edge.Source] = 0
		}
	}
	queue := make([]string, 0, len(indegree))
	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range successors[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	remaining := make([]string, 0)
	for id, degree := range indegree {
		if degree > 0 {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		return ""
	}
	sort.Strings(remaining)
	return remaining[0]
}

func checkAuditMirror(mirrorPath string) Check {
	trimmed := strings.TrimSpace(mirrorPath)
	if trimmed == "" {
		return Check{Name: "audit_mirror", Status: statusPass, Message: "audit journal mirror disabled"}
	}
	if _, err := os.Stat(trimmed); err != nil {
		if os.IsNotExist(err) {
			return Check{Name: "audit_mirror", Status: statusPass, Message: "audit journal mirror has no entries yet"}
		}
		return Check{Name: "audit_mirror", Status: statusFail, Message: fmt.Sprintf("audit journal check failed: %v", err)}
	}
	if err := validate.ValidateJSONLFile(schemagraph.AuditEntrySchema, trimmed); err != nil {
		return Check{
			Name:       "audit_mirror",
			Status:     statusFail,
			Message:    fmt.Sprintf("audit journal invalid: %v", err),
			FixCommand: fmt.Sprintf("opsgraph logs verify %s", shellQuote(trimmed)),
		}
	}
	return Check{Name: "audit_mirror", Status: statusPass, Message: "audit journal matches schema"}
}

func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
