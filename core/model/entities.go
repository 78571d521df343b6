package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
)

type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Type     NodeType `json:"type"`
	Data     Data     `json:"data"`
}

func NewNode(id, label string, category Category, nodeType NodeType, data Data) (Node, error) {
	node := Node{
		ID:       strings.TrimSpace(id),
		Label:    label,
		Category: category,
		Type:     nodeType,
		Data:     data.Clone(),
	}
	if err := node.Validate(); err != nil {
		return Node{}, err
	}
	return node, nil
}

func (n Node) Validate() error {
	if err := ValidateID("node", n.ID); err != nil {
		return err
	}
	if err := validateLabel("node", n.Label); err != nil {
		return err
	}
	if _, err := ParseCategory(string(n.Category)); err != nil {
		return err
	}
	if _, err := ParseNodeType(string(n.Type)); err != nil {
		return err
	}
	return nil
}

func (n Node) Snapshot() Data {
	return Data{
		"id":       n.ID,
		"label":    n.Label,
		"category": string(n.Category),
		"type":     string(n.Type),
		"data":     map[string]any(n.Data.Clone()),
	}
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
	Data   Data   `json:"data"`
}

// EdgeSeparator joins source and target in an edge id. It lies outside the
// node id charset, so distinct pairs never share an id.
const EdgeSeparator = "->"

// EdgeID derives the stored identifier of the edge from source to target.
func EdgeID(source, target string) string {
	return source + EdgeSeparator + target
}

func NewEdge(source, target, label string, data Data) (Edge, error) {
	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)
	edge := Edge{
		ID:     EdgeID(source, target),
		Source: source,
		Target: target,
		Label:  label,
		Data:   data.Clone(),
	}
	if err := edge.Validate(); err != nil {
		return Edge{}, err
	}
	return edge, nil
}

func (e Edge) Validate() error {
	if err := ValidateID("source node", e.Source); err != nil {
		return err
	}
	if err := ValidateID("target node", e.Target); err != nil {
		return err
	}
	if e.ID != EdgeID(e.Source, e.Target) {
		return coreerrors.Invalid("edge id %q does not match %q", e.ID, EdgeID(e.Source, e.Target))
	}
	return validateLabel("edge", e.Label)
}

func (e Edge) Snapshot() Data {
	return Data{
		"id":     e.ID,
		"source": e.Source,
		"target": e.Target,
		"label":  e.Label,
		"data":   map[string]any(e.Data.Clone()),
	}
}

// Status is the current operational state of a node. A node without a stored
// status row reports StatusUnknown with a zero CreatedAt.
type Status struct {
	NodeID    string      `json:"node_id"`
	Status    StatusValue `json:"status"`
	CreatedAt time.Time   `json:"created_at,omitzero"`
}

func NewStatus(nodeID string, value StatusValue) (Status, error) {
	status := Status{NodeID: strings.TrimSpace(nodeID), Status: value}
	if err := status.Validate(); err != nil {
		return Status{}, err
	}
	return status, nil
}

func (s Status) Validate() error {
	if err := ValidateID("node", s.NodeID); err != nil {
		return err
	}
	_, err := ParseStatus(string(s.Status))
	return err
}

func (s Status) Snapshot() Data {
	return Data{
		"node_id": s.NodeID,
		"status":  string(s.Status),
	}
}

// StatusMap indexes statuses by node id.
func StatusMap(statuses []Status) map[string]StatusValue {
	out := make(map[string]StatusValue, len(statuses))
	for _, status := range statuses {
		out[status.NodeID] = status.Status
	}
	return out
}

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	Data      Data      `json:"data"`
	NodeIDs   []string  `json:"node_ids"`
}

// NewProject validates a project and its membership list. An empty id is
// replaced with a random UUID.
func NewProject(id, name, author string, data Data, nodeIDs []string) (Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	project := Project{
		ID:      id,
		Name:    strings.TrimSpace(name),
		Author:  strings.TrimSpace(author),
		Data:    data.Clone(),
		NodeIDs: uniqueSorted(nodeIDs),
	}
	if err := project.Validate(); err != nil {
		return Project{}, err
	}
	return project, nil
}

func (p Project) Validate() error {
	if err := ValidateID("project", p.ID); err != nil {
		return err
	}
	if p.Name == "" {
		return coreerrors.Invalid("project name is required")
	}
	if err := validateLabel("project", p.Name); err != nil {
		return err
	}
	for _, nodeID := range p.NodeIDs {
		if err := ValidateID("member node", nodeID); err != nil {
			return err
		}
	}
	return nil
}

func (p Project) Snapshot() Data {
	members := make([]any, 0, len(p.NodeIDs))
	for _, nodeID := range p.NodeIDs {
		members = append(members, nodeID)
	}
	return Data{
		"id":       p.ID,
		"name":     p.Name,
		"author":   p.Author,
		"data":     map[string]any(p.Data.Clone()),
		"node_ids": members,
	}
}

func MembershipSnapshot(projectID, nodeID string) Data {
	return Data{"project_id": projectID, "node_id": nodeID}
}

// MembershipID is the audit entity id of a project membership row.
func MembershipID(projectID, nodeID string) string {
	return projectID + ":" + nodeID
}

type User struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func NewUser(id string, role Role) (User, error) {
	user := User{ID: strings.TrimSpace(id), Role: role}
	if err := ValidateID("user", user.ID); err != nil {
		return User{}, err
	}
	if _, err := ParseRole(string(role)); err != nil {
		return User{}, err
	}
	return user, nil
}

func (u User) Snapshot() Data {
	return Data{"id": u.ID, "role": string(u.Role)}
}

func uniqueSorted(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
