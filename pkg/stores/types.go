package stores

import (
	"context"
	"time"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

// CompileResult is the outcome of a recorded compile
type CompileResult string

const (
	CompileResultSuccess          CompileResult = "success"
	CompileResultValidationFailed CompileResult = "validation_failed"
	CompileResultPolicyDenied     CompileResult = "policy_denied"
	CompileResultError            CompileResult = "error"
)

// CompileEvent is an append-only record of a compile attempt
type CompileEvent struct {
	ID        int64         `json:"id"`
	Source    string        `json:"source"`
	Result    CompileResult `json:"result"`
	Parameter *string       `json:"parameter,omitempty"` // offending parameter on validation failure
	Message   *string       `json:"message,omitempty"`
	CatalogID *string       `json:"catalog_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	engine.CatalogArchive

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Compile events
	AppendCompileEvent(ctx context.Context, event *CompileEvent) error
	ListCompileEvents(ctx context.Context, source *string, limit, offset int) ([]*CompileEvent, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
