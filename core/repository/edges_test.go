package repository

import (
	"context"
	"strings"
	"testing"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/internal/testutil"
)

func TestInsertEdgeRefusesCycleSilently(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "n1", "n2")
	seedEdges(t, repo, [2]string{"n1", "n2"})

	inserted, err := repo.InsertEdge(ctx, testutil.MustEdge(t, "n2", "n1"))
	if err != nil {
		t.Fatalf("reverse insert: %v", err)
	}
	if inserted {
		t.Fatalf("expected reverse edge to be refused")
	}
	edges, err := repo.GetEdges(ctx)
	if err != nil {
		t.Fatalf("get edges: %v", err)
	}
	if len(edges) != 1 || edges[0].ID != "n1->n2" {
		t.Fatalf("unexpected edges: %+v", edges)
	}
	if _, found, _ := repo.GetEdge(ctx, "n2", "n1"); found {
		t.Fatalf("refused edge must not be readable")
	}
}

func TestInsertEdgeSelfLoopAndTransitiveCycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "a", "b", "c")
	seedEdges(t, repo, [2]string{"a", "b"}, [2]string{"b", "c"})

	for _, pair := range [][2]string{{"a", "a"}, {"c", "a"}, {"c", "b"}} {
		inserted, err := repo.InsertEdge(ctx, testutil.MustEdge(t, pair[0], pair[1]))
		if err != nil || inserted {
			t.Fatalf("edge %v: inserted=%v err=%v", pair, inserted, err)
		}
	}
	inserted, err := repo.InsertEdge(ctx, testutil.MustEdge(t, "a", "c"))
	if err != nil || !inserted {
		t.Fatalf("shortcut edge a->c must be allowed: inserted=%v err=%v", inserted, err)
	}
}

func TestInsertEdgeDuplicateAndMissingEndpoint(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "a", "b")
	seedEdges(t, repo, [2]string{"a", "b"})

	inserted, err := repo.InsertEdge(ctx, testutil.MustEdge(t, "a", "b"))
	if err != nil || inserted {
		t.Fatalf("duplicate edge: inserted=%v err=%v", inserted, err)
	}
	_, err = repo.InsertEdge(ctx, testutil.MustEdge(t, "a", "ghost"))
	if coreerrors.CategoryOf(err) != coreerrors.CategoryNotFound {
		t.Fatalf("expected not_found for missing endpoint, got %v", err)
	}
}

func TestWouldCreateCycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "a", "b", "c", "d")
	seedEdges(t, repo, [2]string{"a", "b"}, [2]string{"b", "c"})

	tests := []struct {
		source string
		target string
		want   bool
	}{
		{source: "a", target: "a", want: true},
		{source: "c", target: "a", want: true},
		{source: "b", target: "a", want: true},
		{source: "a", target: "c", want: false},
		{source: "d", target: "a", want: false},
		{source: "c", target: "d", want: false},
	}
	for _, test := range tests {
		got, err := repo.WouldCreateCycle(ctx, test.source, test.target)
		if err != nil {
			t.Fatalf("would create cycle %s->%s: %v", test.source, test.target, err)
		}
		if got != test.want {
			t.Fatalf("would create cycle %s->%s: expected %v got %v", test.source, test.target, test.want, got)
		}
	}
}

func TestInsertEdgesRejectsCycleInsideBatch(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "a", "b", "c")

	_, err := repo.InsertEdges(ctx, []model.Edge{
		testutil.MustEdge(t, "a", "b"),
		testutil.MustEdge(t, "b", "c"),
		testutil.MustEdge(t, "c", "a"),
	})
	if !IsCycle(err) {
		t.Fatalf("expected cycle conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "c -> a") {
		t.Fatalf("expected error to name offending pair, got %q", err.Error())
	}
	edges, err := repo.GetEdges(ctx)
	if err != nil {
		t.Fatalf("get edges: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected nothing written, got %+v", edges)
	}
}

func TestInsertEdgesRejectsCycleAgainstCommittedEdges(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "a", "b", "c")
	seedEdges(t, repo, [2]string{"a", "b"})

	_, err := repo.InsertEdges(ctx, []model.Edge{
		testutil.MustEdge(t, "b", "c"),
		testutil.MustEdge(t, "c", "a"),
	})
	if !IsCycle(err) {
		t.Fatalf("expected cycle conflict, got %v", err)
	}
}

func TestInsertEdgesWritesAcceptedBatch(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "a", "b", "c")
	seedEdges(t, repo, [2]string{"a", "b"})

	inserted, err := repo.InsertEdges(ctx, []model.Edge{
		testutil.MustEdge(t, "a", "b"),
		testutil.MustEdge(t, "b", "c"),
		testutil.MustEdge(t, "a", "c"),
	})
	if err != nil {
		t.Fatalf("insert edges: %v", err)
	}
	if len(inserted) != 2 || inserted[0].ID != "b->c" || inserted[1].ID != "a->c" {
		t.Fatalf("unexpected inserted edges: %+v", inserted)
	}

	_, err = repo.InsertEdges(ctx, []model.Edge{testutil.MustEdge(t, "c", "ghost")})
	if coreerrors.CategoryOf(err) != coreerrors.CategoryNotFound {
		t.Fatalf("expected not_found for missing endpoint, got %v", err)
	}
}

func TestEdgeIDsOfHyphenatedNodesStayDistinct(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "a", "c", "a-b", "b-c")
	seedEdges(t, repo, [2]string{"a-b", "c"})

	inserted, err := repo.InsertEdges(ctx, []model.Edge{
		testutil.MustEdge(t, "a", "b-c"),
		testutil.MustEdge(t, "b-c", "c"),
	})
	if err != nil {
		t.Fatalf("insert edges: %v", err)
	}
	if len(inserted) != 2 || inserted[0].ID != "a->b-c" || inserted[1].ID != "b-c->c" {
		t.Fatalf("unexpected inserted edges: %+v", inserted)
	}
	edges, err := repo.GetEdges(ctx)
	if err != nil {
		t.Fatalf("get edges: %v", err)
	}
	if len(edges) != 3 {
		t.Fatalf("expected 3 stored edges, got %+v", edges)
	}
	if stored, found, err := repo.GetEdgeByID(ctx, "a-b->c"); err != nil || !found || stored.Source != "a-b" || stored.Target != "c" {
		t.Fatalf("get a-b->c: %+v found=%v err=%v", stored, found, err)
	}
	if stored, found, err := repo.GetEdgeByID(ctx, "a->b-c"); err != nil || !found || stored.Source != "a" || stored.Target != "b-c" {
		t.Fatalf("get a->b-c: %+v found=%v err=%v", stored, found, err)
	}
}

func TestInsertEdgesSkipsDuplicatesWithoutFalseCycles(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "a", "b", "c")
	seedEdges(t, repo, [2]string{"a", "b"})

	inserted, err := repo.InsertEdges(ctx, []model.Edge{
		testutil.MustEdge(t, "a", "b"),
		testutil.MustEdge(t, "a", "b"),
		testutil.MustEdge(t, "c", "a"),
	})
	if err != nil {
		t.Fatalf("insert edges: %v", err)
	}
	if len(inserted) != 1 || inserted[0].ID != "c->a" {
		t.Fatalf("unexpected inserted edges: %+v", inserted)
	}
}

func TestUpdateAndDeleteEdge(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "a", "b")
	seedEdges(t, repo, [2]string{"a", "b"})

	edge, err := model.NewEdge("a", "b", "depends on", model.Data{"port": "5432"})
	if err != nil {
		t.Fatalf("new edge: %v", err)
	}
	if updated, err := repo.UpdateEdge(ctx, edge); err != nil || !updated {
		t.Fatalf("update edge: updated=%v err=%v", updated, err)
	}
	stored, found, err := repo.GetEdgeByID(ctx, "a->b")
	if err != nil || !found {
		t.Fatalf("get edge by id: found=%v err=%v", found, err)
	}
	if stored.Label != "depends on" || stored.Data["port"] != "5432" {
		t.Fatalf("unexpected stored edge: %+v", stored)
	}

	missing := testutil.MustEdge(t, "b", "a")
	if updated, err := repo.UpdateEdge(ctx, missing); err != nil || updated {
		t.Fatalf("update missing edge: updated=%v err=%v", updated, err)
	}
	if deleted, err := repo.DeleteEdge(ctx, "a", "b"); err != nil || !deleted {
		t.Fatalf("delete edge: deleted=%v err=%v", deleted, err)
	}
	if deleted, err := repo.DeleteEdgeByID(ctx, "a->b"); err != nil || deleted {
		t.Fatalf("delete missing edge: deleted=%v err=%v", deleted, err)
	}
}

func TestDeleteNodeCascadesToEdgesAndStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedNodes(t, repo, "n1", "n2", "n3")
	seedEdges(t, repo, [2]string{"n1", "n2"}, [2]string{"n2", "n3"})
	status, _ := model.NewStatus("n2", model.StatusHealthy)
	if ok, err := repo.SetNodeStatus(ctx, status); err != nil || !ok {
		t.Fatalf("set status: ok=%v err=%v", ok, err)
	}

	if deleted, err := repo.DeleteNode(ctx, "n2"); err != nil || !deleted {
		t.Fatalf("delete node: deleted=%v err=%v", deleted, err)
	}
	edges, err := repo.GetEdges(ctx)
	if err != nil {
		t.Fatalf("get edges: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected cascaded edge removal, got %+v", edges)
	}
	if _, exists, _ := repo.LookupStatus(ctx, "n2"); exists {
		t.Fatalf("expected cascaded status removal")
	}
}
