package ports

import (
	"context"

	"github.com/bft-labs/auditship/internal/domain"
)

// DisasterStore persists pending records that no longer fit in memory.
// Implementations must write atomically (e.g., write to temp file, then rename)
// so a crash never leaves a half-written snapshot.
type DisasterStore interface {
	// Persist merges records into the stored snapshot. Records with the same
	// request id replace the stored ones.
	Persist(ctx context.Context, records []domain.AuditRecord) error

	// Load returns every stored record.
	// Returns nil and no error when nothing is stored.
	Load(ctx context.Context) ([]domain.AuditRecord, error)

	// Remove deletes the stored snapshot. Removing a missing snapshot is not an error.
	Remove(ctx context.Context) error

	// Size returns the stored snapshot size in bytes, 0 when nothing is stored.
	Size() (int64, error)
}
