// Package store persists identities, prospects, quota lists and settings.
// Two drivers implement Store: a local SQLite file and a remote PostgREST API.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/models"
)

// ErrNotFound is returned by single-row reads that match nothing.
var ErrNotFound = eris.New("store: not found")

// Store is everything the flows read and write.
type Store interface {
	GetEnabledIdentities(ctx context.Context, ids []string) ([]models.IdentityRecord, error)

	ProfileExists(ctx context.Context, profileURL string) (bool, error)
	// UpsertProspect inserts p or merges it into the existing row. The status
	// never moves backwards. created reports whether the row is new.
	UpsertProspect(ctx context.Context, p models.Prospect) (created bool, err error)
	FetchProspects(ctx context.Context, f models.ProspectFilter, limit int) ([]models.Prospect, error)
	// PatchProspect applies p. When p.FromStatus is set the write only lands
	// on a row still in that status; applied is false otherwise.
	PatchProspect(ctx context.Context, profileURL string, p models.ProspectPatch) (applied bool, err error)

	GetList(ctx context.Context, id string) (*models.List, error)
	GetListCount(ctx context.Context, id string) (int, error)
	IncrementListCount(ctx context.Context, id string) (int, error)
	PatchList(ctx context.Context, id string, p models.ListPatch) error

	GetSetting(ctx context.Context, key, def string) (string, error)

	Close() error
}

// Open returns the driver named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgrest":
		return NewPostgREST(cfg.PostgREST, log), nil
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

const timeLayout = time.RFC3339Nano

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
