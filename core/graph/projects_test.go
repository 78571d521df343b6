package graph

import (
	"context"
	"strings"
	"testing"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
)

func TestProjectLifecycleAudit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mustInsertNodes(t, h.service, "n1", "n2")
	project, err := model.NewProject("p1", "Payments", "", model.Data{"team": "sre"}, []string{"n1"})
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	stored, inserted, err := h.service.InsertProject(ctx, contributor, project)
	if err != nil || !inserted || stored.CreatedAt.IsZero() {
		t.Fatalf("insert project: %+v inserted=%v err=%v", stored, inserted, err)
	}

	if added, err := h.service.AddProjectNode(ctx, contributor, "p1", "n2"); err != nil || !added {
		t.Fatalf("add member: added=%v err=%v", added, err)
	}
	if added, err := h.service.AddProjectNode(ctx, contributor, "p1", "n2"); err != nil || added {
		t.Fatalf("duplicate member: added=%v err=%v", added, err)
	}

	project.Name = "Payments v2"
	if updated, err := h.service.UpdateProject(ctx, contributor, project); err != nil || !updated {
		t.Fatalf("update project: updated=%v err=%v", updated, err)
	}
	reloaded, _, err := h.service.GetProject(ctx, consumer, "p1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if reloaded.Name != "Payments v2" || strings.Join(reloaded.NodeIDs, ",") != "n1,n2" {
		t.Fatalf("update must keep membership: %+v", reloaded)
	}

	if removed, err := h.service.RemoveProjectNode(ctx, contributor, "p1", "n1"); err != nil || !removed {
		t.Fatalf("remove member: removed=%v err=%v", removed, err)
	}
	if deleted, err := h.service.DeleteProject(ctx, contributor, "p1"); err != nil || !deleted {
		t.Fatalf("delete project: deleted=%v err=%v", deleted, err)
	}
	if nodes, _ := h.service.GetNodes(ctx, consumer); len(nodes) != 2 {
		t.Fatalf("project delete must keep nodes, got %d", len(nodes))
	}

	entries := h.logs(t, 5)
	got := make([]string, 0, len(entries))
	for _, entry := range entries {
		got = append(got, string(entry.EntityType)+"/"+string(entry.Action)+"/"+entry.EntityID)
	}
	want := "project/delete/p1,project_node/delete/p1:n1,project/update/p1,project_node/insert/p1:n2,project/insert/p1"
	if strings.Join(got, ",") != want {
		t.Fatalf("unexpected audit trail:\n got %s\nwant %s", strings.Join(got, ","), want)
	}
	update := entries[2]
	if update.OldData["name"] != "Payments" || update.NewData["name"] != "Payments v2" {
		t.Fatalf("unexpected project update snapshots: %+v", update)
	}
}

func TestInsertProjectMissingMember(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project, err := model.NewProject("p1", "Ghosts", "carol", nil, []string{"ghost"})
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	if _, _, err := h.service.InsertProject(ctx, contributor, project); coreerrors.CategoryOf(err) != coreerrors.CategoryNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if entries := h.logs(t, 10); len(entries) != 0 {
		t.Fatalf("failed insert must not be audited, got %d rows", len(entries))
	}
}

func TestSetNodeStatusAuditActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mustInsertNodes(t, h.service, "n1", "n2")

	first, _ := model.NewStatus("n1", model.StatusHealthy)
	second, _ := model.NewStatus("n1", model.StatusMaintenance)
	if applied, err := h.service.SetNodeStatus(ctx, contributor, first); err != nil || !applied {
		t.Fatalf("set status: applied=%v err=%v", applied, err)
	}
	if applied, err := h.service.SetNodeStatus(ctx, contributor, second); err != nil || !applied {
		t.Fatalf("replace status: applied=%v err=%v", applied, err)
	}
	missing, _ := model.NewStatus("ghost", model.StatusHealthy)
	if applied, err := h.service.SetNodeStatus(ctx, contributor, missing); err != nil || applied {
		t.Fatalf("missing node status: applied=%v err=%v", applied, err)
	}

	entries := h.logs(t, 2)
	if entries[0].Action != model.ActionUpdate || entries[0].OldData["status"] != "healthy" || entries[0].NewData["status"] != "maintenance" {
		t.Fatalf("unexpected status update audit: %+v", entries[0])
	}
	if entries[1].Action != model.ActionInsert || entries[1].OldData != nil {
		t.Fatalf("unexpected status insert audit: %+v", entries[1])
	}

	statuses, err := h.service.GetStatuses(ctx, anonymous)
	if err != nil {
		t.Fatalf("get statuses: %v", err)
	}
	byNode := model.StatusMap(statuses)
	if byNode["n1"] != model.StatusMaintenance || byNode["n2"] != model.StatusUnknown {
		t.Fatalf("unexpected statuses: %+v", byNode)
	}

	batch := []model.Status{
		{NodeID: "n2", Status: model.StatusImpacted},
		{NodeID: "ghost", Status: model.StatusImpacted},
		{NodeID: "n1", Status: model.StatusHealthy},
	}
	count, err := h.service.SetNodeStatuses(ctx, contributor, batch)
	if err != nil || count != 2 {
		t.Fatalf("batch statuses: count=%d err=%v", count, err)
	}
	latest := h.logs(t, 2)
	if latest[0].EntityID != "n1" || latest[0].Action != model.ActionUpdate || latest[1].EntityID != "n2" || latest[1].Action != model.ActionInsert {
		t.Fatalf("unexpected batch audit: %+v", latest)
	}
	status, found, err := h.service.GetNodeStatus(ctx, consumer, "n2")
	if err != nil || !found || status.Status != model.StatusImpacted {
		t.Fatalf("get node status: %+v found=%v err=%v", status, found, err)
	}
}

func TestUserManagementIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bob := model.User{ID: "bob", Role: model.RoleConsumer}
	if _, err := h.service.InsertUser(ctx, contributor, bob); coreerrors.CodeOf(err) != coreerrors.CodePermissionDenied {
		t.Fatalf("expected contributor denial, got %v", err)
	}
	if inserted, err := h.service.InsertUser(ctx, admin, bob); err != nil || !inserted {
		t.Fatalf("insert user: inserted=%v err=%v", inserted, err)
	}
	bob.Role = model.RoleContributor
	if updated, err := h.service.UpdateUser(ctx, admin, bob); err != nil || !updated {
		t.Fatalf("update user: updated=%v err=%v", updated, err)
	}
	user, found, err := h.service.GetUser(ctx, anonymous, "bob")
	if err != nil || !found || user.Role != model.RoleContributor {
		t.Fatalf("get user: %+v found=%v err=%v", user, found, err)
	}
	entries := h.logs(t, 1)
	if entries[0].EntityType != model.EntityUser || entries[0].OldData["role"] != "consumer" || entries[0].NewData["role"] != "contributor" {
		t.Fatalf("unexpected user audit: %+v", entries[0])
	}
	if _, err := h.service.InsertUser(ctx, admin, model.User{ID: "eve", Role: "root"}); coreerrors.CategoryOf(err) != coreerrors.CategoryInvalidInput {
		t.Fatalf("expected invalid role, got %v", err)
	}
}

func TestNodeNeighbourReads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mustInsertNodes(t, h.service, "lb", "web", "db")
	mustInsertEdge(t, h.service, "lb", "web")
	mustInsertEdge(t, h.service, "web", "db")

	parents, err := h.service.GetNodeParents(ctx, anonymous, "web")
	if err != nil || len(parents) != 1 || parents[0].ID != "lb" {
		t.Fatalf("parents: %+v err=%v", parents, err)
	}
	dependents, err := h.service.GetNodeDependents(ctx, anonymous, "web")
	if err != nil || len(dependents) != 1 || dependents[0].ID != "db" {
		t.Fatalf("dependents: %+v err=%v", dependents, err)
	}
	view, err := h.service.GetGraph(ctx, anonymous)
	if err != nil || strings.Join(view.EdgeIDs(), ",") != "lb->web,web->db" {
		t.Fatalf("graph: %+v err=%v", view, err)
	}

	edge, found, err := h.service.GetEdge(ctx, anonymous, "lb", "web")
	if err != nil || !found {
		t.Fatalf("get edge: found=%v err=%v", found, err)
	}
	edge.Label = "https"
	if updated, err := h.service.UpdateEdge(ctx, contributor, edge); err != nil || !updated {
		t.Fatalf("update edge: updated=%v err=%v", updated, err)
	}
	if deleted, err := h.service.DeleteEdge(ctx, contributor, "lb", "web"); err != nil || !deleted {
		t.Fatalf("delete edge: deleted=%v err=%v", deleted, err)
	}
	entries := h.logs(t, 2)
	if entries[0].Action != model.ActionDelete || entries[0].OldData["label"] != "https" || entries[1].NewData["label"] != "https" {
		t.Fatalf("unexpected edge audit: %+v", entries)
	}
}
