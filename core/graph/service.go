// Package graph is the domain-facing API over the repository. Each call is
// authorized first, traced, and every state change is written to the audit
// trail with the caller's identity.
package graph

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidahmann/opsgraph/core/authz"
	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/repository"
	"github.com/davidahmann/opsgraph/internal/ctxlog"
)

const tracerName = "github.com/davidahmann/opsgraph/core/graph"

// Recorder is the audit trail the service writes to.
type Recorder interface {
	Record(ctx context.Context, entry model.AuditEntry) (model.AuditEntry, error)
	Logs(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

type Option func(*Service)

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

type Service struct {
	repo     *repository.Repository
	recorder Recorder
	tracer   trace.Tracer

	// write serializes mutations so check-then-write sequences are not
	// interleaved with other writers on the same service.
	write sync.Mutex
}

func New(repo *repository.Repository, recorder Recorder, opts ...Option) *Service {
	service := &Service{
		repo:     repo,
		recorder: recorder,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// begin opens the operation span and runs the authorization gate. The span
// is returned even when the caller is denied so the denial is traced.
func (s *Service) begin(ctx context.Context, op authz.Operation, caller model.Caller) (context.Context, trace.Span, error) {
	ctx, span := s.tracer.Start(ctx, "graph."+op.String(), trace.WithAttributes(
		attribute.String("opsgraph.operation", op.String()),
		attribute.String("opsgraph.role", string(caller.Role)),
		attribute.String("opsgraph.actor_id", caller.ActorID),
	))
	if err := authz.Authorize(op, caller.Role); err != nil {
		ctxlog.FromContext(ctx).Warn("operation denied",
			"operation", op.String(),
			"role", string(caller.Role),
			"actor_id", caller.ActorID,
			"actor_ip", caller.ActorIP,
			"code", coreerrors.CodeOf(err))
		return ctx, span, err
	}
	return ctx, span, nil
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(
			attribute.String("opsgraph.error_category", string(coreerrors.CategoryOf(err))),
			attribute.String("opsgraph.error_code", coreerrors.CodeOf(err)),
		)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// record appends one audit row for a mutation that has already happened.
// A failed append is logged and does not undo or fail the mutation.
func (s *Service) record(ctx context.Context, caller model.Caller, entry model.AuditEntry) {
	entry.ActorID = caller.ActorID
	entry.ActorIP = caller.ActorIP
	stored, err := s.recorder.Record(ctx, entry)
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.AddEvent("audit.failed", trace.WithAttributes(
			attribute.String("opsgraph.entity_type", string(entry.EntityType)),
			attribute.String("opsgraph.entity_id", entry.EntityID),
		))
		ctxlog.FromContext(ctx).Error("audit append failed",
			"entity_type", string(entry.EntityType),
			"entity_id", entry.EntityID,
			"action", string(entry.Action),
			"error", err)
		return
	}
	span.AddEvent("audit.recorded", trace.WithAttributes(attribute.Int64("opsgraph.audit_id", stored.ID)))
}

func (s *Service) recordInsert(ctx context.Context, caller model.Caller, entityType model.EntityType, id string, snapshot model.Data) {
	s.record(ctx, caller, model.AuditEntry{EntityType: entityType, EntityID: id, Action: model.ActionInsert, NewData: snapshot})
}

func (s *Service) recordUpdate(ctx context.Context, caller model.Caller, entityType model.EntityType, id string, before, after model.Data) {
	s.record(ctx, caller, model.AuditEntry{EntityType: entityType, EntityID: id, Action: model.ActionUpdate, OldData: before, NewData: after})
}

func (s *Service) recordDelete(ctx context.Context, caller model.Caller, entityType model.EntityType, id string, before model.Data) {
	s.record(ctx, caller, model.AuditEntry{EntityType: entityType, EntityID: id, Action: model.ActionDelete, OldData: before})
}

// GetLogs returns up to limit audit entries, most recent first.
func (s *Service) GetLogs(ctx context.Context, caller model.Caller, limit int) (entries []model.AuditEntry, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetLogs, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return nil, err
	}
	return s.recorder.Logs(ctx, limit)
}
