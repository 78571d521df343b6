package model

import (
	"strings"
	"time"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
)

// Role is the access tier of a caller. Roles are totally ordered by Rank.
type Role string

const (
	RoleAnonymous   Role = "anonymous"
	RoleConsumer    Role = "consumer"
	RoleContributor Role = "contributor"
	RoleAdmin       Role = "admin"
)

func Roles() []Role {
	return []Role{RoleAnonymous, RoleConsumer, RoleContributor, RoleAdmin}
}

// Rank returns the position of the role in the ordering, or -1 when the role
// is not recognized.
func (r Role) Rank() int {
	for index, role := range Roles() {
		if r == role {
			return index
		}
	}
	return -1
}

func ParseRole(value string) (Role, error) {
	candidate := Role(strings.ToLower(strings.TrimSpace(value)))
	if candidate.Rank() < 0 {
		return "", coreerrors.Invalid("unsupported role %q", value)
	}
	return candidate, nil
}

// Caller identifies who is invoking a service operation. It is passed
// explicitly on every call.
type Caller struct {
	ActorID string `json:"actor_id"`
	ActorIP string `json:"actor_ip"`
	Role    Role   `json:"role"`
}

func Anonymous(actorIP string) Caller {
	return Caller{ActorIP: actorIP, Role: RoleAnonymous}
}

type EntityType string

const (
	EntityNode        EntityType = "node"
	EntityEdge        EntityType = "edge"
	EntityStatus      EntityType = "status"
	EntityProject     EntityType = "project"
	EntityProjectNode EntityType = "project_node"
	EntityUser        EntityType = "user"
)

type AuditAction string

const (
	ActionInsert AuditAction = "insert"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
)

// AuditEntry is one immutable audit row. OldData is nil for inserts and
// NewData is nil for deletes.
type AuditEntry struct {
	ID         int64       `json:"id"`
	EntityType EntityType  `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Action     AuditAction `json:"action"`
	OldData    Data        `json:"old_data"`
	NewData    Data        `json:"new_data"`
	ActorID    string      `json:"actor_id"`
	ActorIP    string      `json:"actor_ip"`
	CreatedAt  time.Time   `json:"created_at"`
}

type ViewNode struct {
	Node
	Depth int `json:"depth"`
}

type ViewEdge struct {
	Edge
	Depth int `json:"depth"`
}

// GraphView is a materialized set of nodes and edges. For project views Depth
// is the hop distance from the project's member nodes; whole-graph views
// leave it at zero.
type GraphView struct {
	Nodes []ViewNode `json:"nodes"`
	Edges []ViewEdge `json:"edges"`
}

func (v GraphView) NodeIDs() []string {
	ids := make([]string, 0, len(v.Nodes))
	for _, node := range v.Nodes {
		ids = append(ids, node.ID)
	}
	return ids
}

func (v GraphView) EdgeIDs() []string {
	ids := make([]string, 0, len(v.Edges))
	for _, edge := range v.Edges {
		ids = append(ids, edge.ID)
	}
	return ids
}
