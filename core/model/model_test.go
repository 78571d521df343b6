package model

import (
	"strings"
	"testing"
	"time"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
)

func TestNewNodeValidation(t *testing.T) {
	node, err := NewNode("web-01", "Web", CategoryApplication, TypeServer, nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if node.Data == nil {
		t.Fatalf("expected empty data bag, got nil")
	}

	tests := []struct {
		name     string
		id       string
		label    string
		category Category
		nodeType NodeType
	}{
		{name: "empty_id", id: "", label: "x", category: CategoryNetwork, nodeType: TypeNetwork},
		{name: "space_in_id", id: "a b", label: "x", category: CategoryNetwork, nodeType: TypeNetwork},
		{name: "slash_in_id", id: "a/b", label: "x", category: CategoryNetwork, nodeType: TypeNetwork},
		{name: "long_label", id: "a", label: strings.Repeat("x", MaxLabelLength+1), category: CategoryNetwork, nodeType: TypeNetwork},
		{name: "bad_category", id: "a", label: "x", category: "platform", nodeType: TypeNetwork},
		{name: "bad_type", id: "a", label: "x", category: CategoryNetwork, nodeType: "router"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewNode(test.id, test.label, test.category, test.nodeType, nil)
			if !coreerrors.Is(err, coreerrors.CategoryInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestNewEdgeDerivesID(t *testing.T) {
	edge, err := NewEdge("n1", "n2", "", Data{"proto": "tcp"})
	if err != nil {
		t.Fatalf("new edge: %v", err)
	}
	if edge.ID != "n1->n2" {
		t.Fatalf("unexpected edge id: %s", edge.ID)
	}
	if _, err := NewEdge("n1", "", "", nil); !coreerrors.Is(err, coreerrors.CategoryInvalidInput) {
		t.Fatalf("expected invalid target, got %v", err)
	}
	tampered := edge
	tampered.ID = "other"
	if err := tampered.Validate(); !coreerrors.Is(err, coreerrors.CategoryInvalidInput) {
		t.Fatalf("expected id mismatch rejection, got %v", err)
	}
}

func TestNewProjectDefaultsAndMembership(t *testing.T) {
	project, err := NewProject("", " Payments ", "alice", nil, []string{"n2", "n1", "n2"})
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	if project.ID == "" {
		t.Fatalf("expected generated project id")
	}
	if err := ValidateID("project", project.ID); err != nil {
		t.Fatalf("generated id must be a valid identifier: %v", err)
	}
	if project.Name != "Payments" {
		t.Fatalf("unexpected name: %q", project.Name)
	}
	if strings.Join(project.NodeIDs, ",") != "n1,n2" {
		t.Fatalf("unexpected members: %v", project.NodeIDs)
	}
	if _, err := NewProject("p1", "", "", nil, nil); err == nil {
		t.Fatalf("expected missing name rejection")
	}
	if _, err := NewProject("p1", "x", "", nil, []string{"bad id"}); err == nil {
		t.Fatalf("expected bad member rejection")
	}
}

func TestParseEnums(t *testing.T) {
	if category, err := ParseCategory(" Infrastructure "); err != nil || category != CategoryInfrastructure {
		t.Fatalf("parse category: %v %v", category, err)
	}
	if nodeType, err := ParseNodeType("DATABASE"); err != nil || nodeType != TypeDatabase {
		t.Fatalf("parse type: %v %v", nodeType, err)
	}
	if status, err := ParseStatus("impacted"); err != nil || status != StatusImpacted {
		t.Fatalf("parse status: %v %v", status, err)
	}
	if _, err := ParseStatus("degraded"); err == nil {
		t.Fatalf("expected unknown status rejection")
	}
	if _, err := ParseRole("root"); err == nil {
		t.Fatalf("expected unknown role rejection")
	}
}

func TestRoleRanksAreOrdered(t *testing.T) {
	previous := -1
	for _, role := range Roles() {
		if role.Rank() <= previous {
			t.Fatalf("role %s rank %d not above %d", role, role.Rank(), previous)
		}
		previous = role.Rank()
	}
	if Role("guest").Rank() != -1 {
		t.Fatalf("expected unknown role rank -1")
	}
}

func TestDataEncodeDecode(t *testing.T) {
	encoded, err := EncodeData(Data{"zone": "eu", "env": "prod"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded != `{"env":"prod","zone":"eu"}` {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	empty, err := EncodeData(nil)
	if err != nil || empty != "{}" {
		t.Fatalf("unexpected nil encoding: %q %v", empty, err)
	}
	decoded, err := DecodeData(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["env"] != "prod" || decoded["zone"] != "eu" {
		t.Fatalf("unexpected decoded data: %v", decoded)
	}
	for _, raw := range []string{"", "{", "null", "[1]", `"text"`} {
		if _, err := DecodeData(raw); err == nil {
			t.Fatalf("expected decode failure for %q", raw)
		}
	}
}

func TestTimestampLayoutSortsLexically(t *testing.T) {
	early := FormatTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	late := FormatTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 10, time.UTC))
	if !(early < late) {
		t.Fatalf("expected %s < %s", early, late)
	}
	parsed, err := ParseTimestamp(late)
	if err != nil {
		t.Fatalf("parse timestamp: %v", err)
	}
	if parsed.Nanosecond() != 10 {
		t.Fatalf("unexpected nanoseconds: %d", parsed.Nanosecond())
	}
}

func TestStatusMap(t *testing.T) {
	statuses := []Status{{NodeID: "a", Status: StatusHealthy}, {NodeID: "b", Status: StatusUnknown}}
	mapped := StatusMap(statuses)
	if mapped["a"] != StatusHealthy || mapped["b"] != StatusUnknown || len(mapped) != 2 {
		t.Fatalf("unexpected status map: %v", mapped)
	}
}
