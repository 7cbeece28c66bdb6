package list

import (
	"context"
	"time"

	"chainscreen/pkg/domain"
)

// Store persists list versions and their entries. Implementations must make
// Promote atomic: at no point may an observer see zero or two active versions
// for one source.
type Store interface {
	// CreateVersion records a freshly ingested version (pending or failed).
	CreateVersion(ctx context.Context, version *ListVersion) error

	// FindVersion returns a version by ID, or sentinel.ErrNotFound.
	FindVersion(ctx context.Context, id domain.VersionID) (*ListVersion, error)

	// ActiveVersion returns the single active version for a source, or
	// sentinel.ErrNotFound when the source has never been promoted.
	ActiveVersion(ctx context.Context, source Source) (*ListVersion, error)

	// ActiveVersions returns the active version of every source.
	ActiveVersions(ctx context.Context) ([]*ListVersion, error)

	// VersionsBySource returns all versions for a source, newest first.
	VersionsBySource(ctx context.Context, source Source) ([]*ListVersion, error)

	// MarkFailed transitions a pending version to failed with a reason.
	// Fails with sentinel.ErrInvalidState unless the version is pending.
	MarkFailed(ctx context.Context, id domain.VersionID, reason string) error

	// SetCounts records the validated record/address counts on a pending
	// version and moves it to validated, making it eligible for Promote.
	SetCounts(ctx context.Context, id domain.VersionID, recordCount, addressCount int) error

	// SaveEntries persists the validated entries of a version.
	SaveEntries(ctx context.Context, id domain.VersionID, entries []Entry) error

	// EntriesForVersions returns all entries owned by the given versions.
	EntriesForVersions(ctx context.Context, ids []domain.VersionID) ([]Entry, error)

	// Promote atomically supersedes the current active version of the
	// version's source (if any) and activates the given validated version.
	// Fails with sentinel.ErrInvalidState when the version has not passed
	// validation, so an unvalidated version can never go live.
	Promote(ctx context.Context, id domain.VersionID, promotedAt time.Time, promotedBy string) error

	// Reactivate atomically swaps the active pointer back to a superseded
	// version, marking the currently active one superseded. Used by rollback.
	Reactivate(ctx context.Context, id domain.VersionID, promotedAt time.Time, promotedBy string) error
}
