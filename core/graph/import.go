package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidahmann/opsgraph/core/authz"
	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/jcs"
	"github.com/davidahmann/opsgraph/core/model"
	schemagraph "github.com/davidahmann/opsgraph/core/schema/v1/graph"
	"github.com/davidahmann/opsgraph/core/schema/validate"
	"github.com/davidahmann/opsgraph/internal/ctxlog"
)

// ImportSummary counts the rows an import wrote. Entities that already
// existed are not counted.
type ImportSummary struct {
	Digest           string `json:"digest"`
	NodesInserted    int    `json:"nodes_inserted"`
	EdgesInserted    int    `json:"edges_inserted"`
	StatusesApplied  int    `json:"statuses_applied"`
	ProjectsInserted int    `json:"projects_inserted"`
}

type importPlan struct {
	nodes    []model.Node
	edges    []model.Edge
	statuses []model.Status
	projects []model.Project
}

// ImportJSON validates raw against the import schema, then imports it.
func (s *Service) ImportJSON(ctx context.Context, caller model.Caller, raw []byte) (summary ImportSummary, err error) {
	ctx, span, err := s.begin(ctx, authz.OpImport, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return ImportSummary{}, err
	}
	if err = validate.ValidateJSON(schemagraph.ImportSchema, raw); err != nil {
		return ImportSummary{}, err
	}
	var document schemagraph.ImportDocument
	if err = json.Unmarshal(raw, &document); err != nil {
		return ImportSummary{}, coreerrors.Invalid("decode import document: %v", err)
	}
	return s.importDocument(ctx, caller, document)
}

// Import writes nodes, then edges, then statuses, then projects. Each stage
// is one transaction; an edge batch that would create a cycle stops the
// import after the node stage with a conflict error.
func (s *Service) Import(ctx context.Context, caller model.Caller, document schemagraph.ImportDocument) (summary ImportSummary, err error) {
	ctx, span, err := s.begin(ctx, authz.OpImport, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return ImportSummary{}, err
	}
	return s.importDocument(ctx, caller, document)
}

func (s *Service) importDocument(ctx context.Context, caller model.Caller, document schemagraph.ImportDocument) (ImportSummary, error) {
	if document.SchemaID != schemagraph.ImportSchemaID || document.SchemaVersion != schemagraph.ImportSchemaVersion {
		return ImportSummary{}, coreerrors.Invalid("unsupported import document %s@%s", document.SchemaID, document.SchemaVersion)
	}
	plan, err := planImport(document, caller)
	if err != nil {
		return ImportSummary{}, err
	}
	raw, err := json.Marshal(document)
	if err != nil {
		return ImportSummary{}, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "import_encode_failed", "report the document that failed to encode", false)
	}
	digest, err := jcs.DigestJCS(raw)
	if err != nil {
		return ImportSummary{}, coreerrors.Invalid("canonicalize import document: %v", err)
	}
	summary := ImportSummary{Digest: digest}

	s.write.Lock()
	defer s.write.Unlock()

	nodes, err := s.repo.InsertNodes(ctx, plan.nodes)
	if err != nil {
		return summary, err
	}
	for _, node := range nodes {
		s.recordInsert(ctx, caller, model.EntityNode, node.ID, node.Snapshot())
	}
	summary.NodesInserted = len(nodes)

	edges, err := s.repo.InsertEdges(ctx, plan.edges)
	if err != nil {
		return summary, err
	}
	for _, edge := range edges {
		s.recordInsert(ctx, caller, model.EntityEdge, edge.ID, edge.Snapshot())
	}
	summary.EdgesInserted = len(edges)

	if summary.StatusesApplied, err = s.setStatuses(ctx, caller, plan.statuses); err != nil {
		return summary, err
	}
	for _, project := range plan.projects {
		_, inserted, err := s.insertProject(ctx, caller, project)
		if err != nil {
			return summary, err
		}
		if inserted {
			summary.ProjectsInserted++
		}
	}

	ctxlog.FromContext(ctx).Info("graph import applied",
		"digest", summary.Digest,
		"nodes", summary.NodesInserted,
		"edges", summary.EdgesInserted,
		"statuses", summary.StatusesApplied,
		"projects", summary.ProjectsInserted)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("opsgraph.import_digest", summary.Digest),
		attribute.Int("opsgraph.nodes_inserted", summary.NodesInserted),
		attribute.Int("opsgraph.edges_inserted", summary.EdgesInserted),
	)
	return summary, nil
}

// planImport converts and validates every entity before anything is written.
func planImport(document schemagraph.ImportDocument, caller model.Caller) (importPlan, error) {
	plan := importPlan{}
	for index, item := range document.Nodes {
		node, err := model.NewNode(item.ID, item.Label, model.Category(item.Category), model.NodeType(item.Type), model.Data(item.Data))
		if err != nil {
			return importPlan{}, importEntryError("nodes", index, err)
		}
		plan.nodes = append(plan.nodes, node)
	}
	for index, item := range document.Edges {
		edge, err := model.NewEdge(item.Source, item.Target, item.Label, model.Data(item.Data))
		if err != nil {
			return importPlan{}, importEntryError("edges", index, err)
		}
		plan.edges = append(plan.edges, edge)
	}
	for index, item := range document.Statuses {
		status, err := model.NewStatus(item.NodeID, model.StatusValue(item.Status))
		if err != nil {
			return importPlan{}, importEntryError("statuses", index, err)
		}
		plan.statuses = append(plan.statuses, status)
	}
	for index, item := range document.Projects {
		author := item.Author
		if author == "" {
			author = caller.ActorID
		}
		project, err := model.NewProject(item.ID, item.Name, author, model.Data(item.Data), item.NodeIDs)
		if err != nil {
			return importPlan{}, importEntryError("projects", index, err)
		}
		plan.projects = append(plan.projects, project)
	}
	return plan, nil
}

func importEntryError(section string, index int, err error) error {
	return coreerrors.Wrap(fmt.Errorf("%s[%d]: %w", section, index, err), coreerrors.CategoryInvalidInput, coreerrors.CodeInvalidInput, "fix the import entry and retry", false)
}
