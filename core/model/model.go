// Package model holds the graph domain types shared by the repository, the
// audit recorder, the authorization gate and the service layer.
package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
)

const (
	MaxLabelLength  = 120
	TimestampLayout = "2006-01-02T15:04:05.000000000Z"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Category string

const (
	CategoryBusiness       Category = "business"
	CategoryApplication    Category = "application"
	CategoryInfrastructure Category = "infrastructure"
	CategoryNetwork        Category = "network"
)

type NodeType string

const (
	TypeServer      NodeType = "server"
	TypeDatabase    NodeType = "database"
	TypeApplication NodeType = "application"
	TypeNetwork     NodeType = "network"
)

type StatusValue string

const (
	StatusUnknown     StatusValue = "unknown"
	StatusHealthy     StatusValue = "healthy"
	StatusUnhealthy   StatusValue = "unhealthy"
	StatusMaintenance StatusValue = "maintenance"
	StatusImpacted    StatusValue = "impacted"
)

func Categories() []Category {
	return []Category{CategoryBusiness, CategoryApplication, CategoryInfrastructure, CategoryNetwork}
}

func Types() []NodeType {
	return []NodeType{TypeServer, TypeDatabase, TypeApplication, TypeNetwork}
}

func Statuses() []StatusValue {
	return []StatusValue{StatusUnknown, StatusHealthy, StatusUnhealthy, StatusMaintenance, StatusImpacted}
}

func ParseCategory(value string) (Category, error) {
	candidate := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, category := range Categories() {
		if candidate == category {
			return category, nil
		}
	}
	return "", coreerrors.Invalid("unsupported node category %q", value)
}

func ParseNodeType(value string) (NodeType, error) {
	candidate := NodeType(strings.ToLower(strings.TrimSpace(value)))
	for _, nodeType := range Types() {
		if candidate == nodeType {
			return nodeType, nil
		}
	}
	return "", coreerrors.Invalid("unsupported node type %q", value)
}

func ParseStatus(value string) (StatusValue, error) {
	candidate := StatusValue(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range Statuses() {
		if candidate == status {
			return status, nil
		}
	}
	return "", coreerrors.Invalid("unsupported status %q", value)
}

// ValidateID checks the shared identifier alphabet used by nodes, projects and users.
func ValidateID(kind, id string) error {
	if id == "" {
		return coreerrors.Invalid("%s id is required", kind)
	}
	if !identifierPattern.MatchString(id) {
		return coreerrors.Invalid("%s id %q must match [A-Za-z0-9_-]+", kind, id)
	}
	return nil
}

func validateLabel(kind, label string) error {
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return coreerrors.Invalid("%s label exceeds %d characters", kind, MaxLabelLength)
	}
	return nil
}

func FormatTimestamp(value time.Time) string {
	return value.UTC().Format(TimestampLayout)
}

func ParseTimestamp(value string) (time.Time, error) {
	return time.Parse(TimestampLayout, value)
}
