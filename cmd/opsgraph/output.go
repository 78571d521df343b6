package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/davidahmann/opsgraph/core/graph"
	"github.com/davidahmann/opsgraph/core/model"
)

func printResult(out io.Writer, result any) {
	switch value := result.(type) {
	case nil:
	case model.Node:
		printNodes(out, []model.Node{value})
	case []model.Node:
		printNodes(out, value)
	case model.Edge:
		printEdges(out, []model.Edge{value})
	case []model.Edge:
		printEdges(out, value)
	case model.Status:
		printStatuses(out, []model.Status{value})
	case []model.Status:
		printStatuses(out, value)
	case model.Project:
		printProjects(out, []model.Project{value})
	case []model.Project:
		printProjects(out, value)
	case model.User:
		_, _ = fmt.Fprintf(out, "%s\t%s\n", value.ID, value.Role)
	case model.GraphView:
		printView(out, value)
	case []model.AuditEntry:
		printAudit(out, value)
	case []model.Category:
		for _, category := range value {
			_, _ = fmt.Fprintln(out, category)
		}
	case []model.NodeType:
		for _, nodeType := range value {
			_, _ = fmt.Fprintln(out, nodeType)
		}
	case changeResult:
		state := "unchanged"
		if value.Changed {
			state = "changed"
		}
		_, _ = fmt.Fprintf(out, "%s %s: %s\n", value.Entity, value.ID, state)
	case countResult:
		_, _ = fmt.Fprintf(out, "count: %d\n", value.Count)
	case graph.ImportSummary:
		_, _ = fmt.Fprintf(out, "import %s: nodes=%d edges=%d statuses=%d projects=%d\n",
			value.Digest, value.NodesInserted, value.EdgesInserted, value.StatusesApplied, value.ProjectsInserted)
	default:
		encoded, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			_, _ = fmt.Fprintf(out, "%v\n", value)
			return
		}
		_, _ = fmt.Fprintln(out, string(encoded))
	}
}

func printNodes(out io.Writer, nodes []model.Node) {
	for _, node := range nodes {
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", node.ID, node.Label, node.Category, node.Type, encodeInline(node.Data))
	}
}

func printEdges(out io.Writer, edges []model.Edge) {
	for _, edge := range edges {
		_, _ = fmt.Fprintf(out, "%s\t%s -> %s\t%s\t%s\n", edge.ID, edge.Source, edge.Target, edge.Label, encodeInline(edge.Data))
	}
}

func printStatuses(out io.Writer, statuses []model.Status) {
	for _, status := range statuses {
		_, _ = fmt.Fprintf(out, "%s\t%s\n", status.NodeID, status.Status)
	}
}

func printProjects(out io.Writer, projects []model.Project) {
	for _, project := range projects {
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t[%s]\n", project.ID, project.Name, project.Author, strings.Join(project.NodeIDs, ","))
	}
}

func printView(out io.Writer, view model.GraphView) {
	_, _ = fmt.Fprintf(out, "nodes (%d):\n", len(view.Nodes))
	for _, node := range view.Nodes {
		_, _ = fmt.Fprintf(out, "  %d\t%s\t%s\n", node.Depth, node.ID, node.Label)
	}
	_, _ = fmt.Fprintf(out, "edges (%d):\n", len(view.Edges))
	for _, edge := range view.Edges {
		_, _ = fmt.Fprintf(out, "  %d\t%s -> %s\n", edge.Depth, edge.Source, edge.Target)
	}
}

func printAudit(out io.Writer, entries []model.AuditEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintf(out, "%d\t%s\t%s\t%s %s\t%s@%s\n",
			entry.ID, model.FormatTimestamp(entry.CreatedAt), entry.Action, entry.EntityType, entry.EntityID, entry.ActorID, entry.ActorIP)
	}
}

func encodeInline(data model.Data) string {
	encoded, err := model.EncodeData(data)
	if err != nil {
		return "{}"
	}
	return encoded
}
