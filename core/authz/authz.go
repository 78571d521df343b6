// Package authz decides whether a caller role may invoke a graph operation.
// Every operation is mapped to a tier in a static table; anything not in the
// table is refused.
package authz

import (
	"fmt"
	"sort"
	"strings"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
)

type Operation int

const (
	OpGetNode Operation = iota + 1
	OpGetNodes
	OpGetNodeParents
	OpGetNodeDependents
	OpInsertNode
	OpInsertNodes
	OpUpdateNode
	OpDeleteNode
	OpGetEdge
	OpGetEdges
	OpInsertEdge
	OpInsertEdges
	OpUpdateEdge
	OpDeleteEdge
	OpGetGraph
	OpGetCategories
	OpGetTypes
	OpGetStatuses
	OpGetNodeStatus
	OpSetNodeStatus
	OpSetNodeStatuses
	OpGetProject
	OpGetProjects
	OpInsertProject
	OpUpdateProject
	OpDeleteProject
	OpAddProjectNode
	OpRemoveProjectNode
	OpGetProjectGraph
	OpGetLogs
	OpGetUser
	OpInsertUser
	OpUpdateUser
	OpImport
)

type Tier string

const (
	TierOpen       Tier = "open"
	TierRestricted Tier = "restricted"
	TierAdmin      Tier = "admin"
)

type entry struct {
	name string
	tier Tier
}

var table = map[Operation]entry{
	OpGetNode:           {name: "getNode", tier: TierOpen},
	OpGetNodes:          {name: "getNodes", tier: TierOpen},
	OpGetNodeParents:    {name: "getNodeParents", tier: TierOpen},
	OpGetNodeDependents: {name: "getNodeDependents", tier: TierOpen},
	OpInsertNode:        {name: "insertNode", tier: TierRestricted},
	OpInsertNodes:       {name: "insertNodes", tier: TierRestricted},
	OpUpdateNode:        {name: "updateNode", tier: TierRestricted},
	OpDeleteNode:        {name: "deleteNode", tier: TierRestricted},
	OpGetEdge:           {name: "getEdge", tier: TierOpen},
	OpGetEdges:          {name: "getEdges", tier: TierOpen},
	OpInsertEdge:        {name: "insertEdge", tier: TierRestricted},
	OpInsertEdges:       {name: "insertEdges", tier: TierRestricted},
	OpUpdateEdge:        {name: "updateEdge", tier: TierRestricted},
	OpDeleteEdge:        {name: "deleteEdge", tier: TierRestricted},
	OpGetGraph:          {name: "getGraph", tier: TierOpen},
	OpGetCategories:     {name: "getCategories", tier: TierOpen},
	OpGetTypes:          {name: "getTypes", tier: TierOpen},
	OpGetStatuses:       {name: "getStatuses", tier: TierOpen},
	OpGetNodeStatus:     {name: "getNodeStatus", tier: TierOpen},
	OpSetNodeStatus:     {name: "setNodeStatus", tier: TierRestricted},
	OpSetNodeStatuses:   {name: "setNodeStatuses", tier: TierRestricted},
	OpGetProject:        {name: "getProject", tier: TierOpen},
	OpGetProjects:       {name: "getProjects", tier: TierOpen},
	OpInsertProject:     {name: "insertProject", tier: TierRestricted},
	OpUpdateProject:     {name: "updateProject", tier: TierRestricted},
	OpDeleteProject:     {name: "deleteProject", tier: TierRestricted},
	OpAddProjectNode:    {name: "addProjectNode", tier: TierRestricted},
	OpRemoveProjectNode: {name: "removeProjectNode", tier: TierRestricted},
	OpGetProjectGraph:   {name: "getProjectGraph", tier: TierOpen},
	OpGetLogs:           {name: "getLogs", tier: TierOpen},
	OpGetUser:           {name: "getUser", tier: TierOpen},
	OpInsertUser:        {name: "insertUser", tier: TierAdmin},
	OpUpdateUser:        {name: "updateUser", tier: TierAdmin},
	OpImport:            {name: "import", tier: TierRestricted},
}

func (op Operation) String() string {
	if known, ok := table[op]; ok {
		return known.name
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// Operations lists every known operation in declaration order.
func Operations() []Operation {
	out := make([]Operation, 0, len(table))
	for op := range table {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ParseOperation(name string) (Operation, error) {
	trimmed := strings.TrimSpace(name)
	for op, known := range table {
		if strings.EqualFold(known.name, trimmed) {
			return op, nil
		}
	}
	return 0, unrecognized(trimmed)
}

func TierOf(op Operation) (Tier, bool) {
	known, ok := table[op]
	return known.tier, ok
}

// Decision is the outcome of evaluating one operation for one role.
type Decision struct {
	Operation  string     `json:"operation"`
	Role       model.Role `json:"role"`
	Tier       Tier       `json:"tier,omitempty"`
	Allowed    bool       `json:"allowed"`
	ReasonCode string     `json:"reason_code"`
}

// Evaluate applies the tier table: admin may do anything known, open
// operations are allowed for every role, restricted ones need contributor
// or above, and admin-tier operations need admin. Unknown operations and
// unknown roles are denied.
func Evaluate(op Operation, role model.Role) Decision {
	decision := Decision{Operation: op.String(), Role: role}
	known, ok := table[op]
	if !ok {
		decision.ReasonCode = coreerrors.CodeOperationUnrecognized
		return decision
	}
	decision.Tier = known.tier
	rank := role.Rank()
	switch {
	case rank < 0:
		decision.ReasonCode = "role_unrecognized"
	case role == model.RoleAdmin:
		decision.Allowed = true
		decision.ReasonCode = "admin"
	case known.tier == TierOpen:
		decision.Allowed = true
		decision.ReasonCode = "open_operation"
	case known.tier == TierRestricted && rank >= model.RoleContributor.Rank():
		decision.Allowed = true
		decision.ReasonCode = "contributor_operation"
	default:
		decision.ReasonCode = "insufficient_role"
	}
	return decision
}

// Authorize returns nil when role may invoke op, and a permission_denied
// error otherwise. Unknown operations carry the operation_unrecognized code.
func Authorize(op Operation, role model.Role) error {
	decision := Evaluate(op, role)
	if decision.Allowed {
		return nil
	}
	if decision.ReasonCode == coreerrors.CodeOperationUnrecognized {
		return unrecognized(decision.Operation)
	}
	return coreerrors.Wrap(
		fmt.Errorf("role %q may not invoke %s (%s)", role, decision.Operation, decision.ReasonCode),
		coreerrors.CategoryPermissionDenied,
		coreerrors.CodePermissionDenied,
		"retry with a role that holds the required tier",
		false,
	)
}

func unrecognized(name string) error {
	return coreerrors.Wrap(
		fmt.Errorf("operation not recognized: %s", name),
		coreerrors.CategoryPermissionDenied,
		coreerrors.CodeOperationUnrecognized,
		"use one of the documented graph operations",
		false,
	)
}

// IsUnrecognized reports whether err is the unknown-operation denial.
func IsUnrecognized(err error) bool {
	return coreerrors.CodeOf(err) == coreerrors.CodeOperationUnrecognized
}
