package rotation

import (
	"context"
	"fmt"
	"sync"

	"github.com/x8080x2/CLS0-sub000/internal/config"
	"github.com/x8080x2/CLS0-sub000/internal/models"
)

// Rotator holds an ordered, immutable list of edge credentials and a
// round-robin cursor pointing at the credential the next call should
// start from. The cursor is a load-spreading heuristic, not a fairness
// guarantee: concurrent callers may pick the same starting credential.
type Rotator struct {
	mu     sync.Mutex
	creds  []config.EdgeCredential
	cursor int
}

func New(creds []config.EdgeCredential) *Rotator {
	return &Rotator{creds: creds}
}

func (r *Rotator) Len() int { return len(r.creds) }

// Pick returns the credential for the given attempt offset along with
// its absolute index, counting from the current cursor.
func (r *Rotator) Pick(attempt int) (config.EdgeCredential, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.cursor + attempt) % len(r.creds)
	return r.creds[idx], idx
}

// MarkSuccess advances the cursor to the entry after the one that just
// succeeded, so the next outer call starts from a fresh account.
func (r *Rotator) MarkSuccess(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = (index + 1) % len(r.creds)
}

// Do runs fn against each credential in rotation order until one
// succeeds, then records that index as the new cursor. When every
// credential fails it returns ErrAllCredentialsExhausted; no partial
// state is retained.
func (r *Rotator) Do(ctx context.Context, fn func(cred config.EdgeCredential) error) error {
	n := r.Len()
	if n == 0 {
		return models.ErrAllCredentialsExhausted
	}
	var lastErr error
	for attempt := 0; attempt < n; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cred, idx := r.Pick(attempt)
		if err := fn(cred); err != nil {
			lastErr = err
			continue
		}
		r.MarkSuccess(idx)
		return nil
	}
	return fmt.Errorf("%w (last: %v)", models.ErrAllCredentialsExhausted, lastErr)
}
