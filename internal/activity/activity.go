// Package activity records audit events for sign-ins, profile changes and
// catalog writes.
package activity

import (
	"context"
	"time"
)

// Type names an audit event.
type Type string

const (
	TypeSignUp          Type = "sign_up"
	TypeSignIn          Type = "sign_in"
	TypeSignInFailed    Type = "sign_in_failed"
	TypeSignOut         Type = "sign_out"
	TypeEmailConfirmed  Type = "email_confirmed"
	TypeProfileUpdated  Type = "profile_updated"
	TypeCatalogCreated  Type = "catalog_created"
	TypeCatalogUpdated  Type = "catalog_updated"
	TypeCatalogDeleted  Type = "catalog_deleted"
	TypeAccessForbidden Type = "access_forbidden"
)

// Event is a single audit entry.
type Event struct {
	Type       Type           `json:"type"`
	ActorID    string         `json:"actor_id,omitempty"`
	SubjectID  string         `json:"subject_id,omitempty"`
	Resource   string         `json:"resource,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Sink receives audit events. Record must not block the caller for long and
// never fails the operation being audited.
type Sink interface {
	Record(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, e Event) {
	f(ctx, e)
}

type multi []Sink

// Multi fans an event out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Record(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	for _, s := range m {
		s.Record(ctx, e)
	}
}

// Noop discards events.
func Noop() Sink {
	return SinkFunc(func(context.Context, Event) {})
}
