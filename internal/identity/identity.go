// Package identity loads the pool of automation senders and assigns work to them.
package identity

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/logging"
	"github.com/example/prospector/internal/models"
)

// NoIdentitiesError is returned when the filtered pool is empty. It is fatal
// for the run and never retried.
type NoIdentitiesError struct {
	Requested []string
}

func (e *NoIdentitiesError) Error() string {
	if len(e.Requested) > 0 {
		return "identity: no enabled identities among " + strings.Join(e.Requested, ",")
	}
	return "identity: no enabled identities"
}

// Source is the store read the loader needs.
type Source interface {
	GetEnabledIdentities(ctx context.Context, ids []string) ([]models.IdentityRecord, error)
}

type Loader struct {
	src Source
	log *zap.Logger
}

func NewLoader(src Source, log *zap.Logger) *Loader {
	return &Loader{src: src, log: logging.Module(log, "identity")}
}

// Load returns the enabled identities, in store order, optionally restricted
// to ids. Session blobs are decoded; a corrupt blob yields a nil Session.
func (l *Loader) Load(ctx context.Context, ids []string) ([]models.Identity, error) {
	recs, err := l.src.GetEnabledIdentities(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "identity: load")
	}
	out := make([]models.Identity, 0, len(recs))
	for _, r := range recs {
		if !r.Enabled {
			continue
		}
		id := models.Identity{ID: r.ID, Name: r.Name, Enabled: true, UserAgent: r.UserAgent}
		sess, err := DecodeSession(r.SessionState)
		if err != nil {
			l.log.Warn("session state unreadable, identity cannot authenticate",
				zap.String("identity", id.DisplayName()), zap.Error(err))
		}
		id.Session = sess
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, &NoIdentitiesError{Requested: ids}
	}
	l.log.Info("identity pool loaded", zap.Int("count", len(out)))
	return out, nil
}

// DecodeSession parses a stored session blob. The blob may be the JSON object
// itself or a JSON string holding it. Empty or null blobs return (nil, nil).
func DecodeSession(raw []byte) (*models.SessionState, error) {
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, eris.Wrap(err, "identity: session string")
		}
		return DecodeSession([]byte(inner))
	}
	var st models.SessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, eris.Wrap(err, "identity: session json")
	}
	return &st, nil
}
