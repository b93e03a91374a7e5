package collection

import (
	"context"
	"log"
	"slices"

	"github.com/CageChen/astrohub/internal/astrofile"
	"github.com/CageChen/astrohub/internal/lockable"
)

// Synced guards a Collection so it can be shared between goroutines. Every
// operation holds the instance lock for its full duration; operations called
// with a context handed out by another Synced operation re-enter it.
type Synced struct {
	lock       lockable.Lockable
	ops        lockable.Methods
	c          *Collection
	sortFields []string
}

// NewSynced wraps c.
func NewSynced(c *Collection) *Synced {
	s := &Synced{c: c}
	s.ops = s.lock.Synchronize(lockable.Methods{
		"sort":   s.sort,
		"reload": s.reload,
	}, "sort reload")
	return s
}

// View runs fn with exclusive access to the underlying collection.
func (s *Synced) View(ctx context.Context, fn func(ctx context.Context, c *Collection) error) error {
	return s.lock.Do(ctx, func(ctx context.Context) error {
		return fn(ctx, s.c)
	})
}

// Len returns the number of handles.
func (s *Synced) Len(ctx context.Context) int {
	n, _ := lockable.DoValue(ctx, &s.lock, func(context.Context) (int, error) {
		return s.c.Len(), nil
	})
	return n
}

// Handles returns a snapshot of the handle list.
func (s *Synced) Handles(ctx context.Context) []astrofile.Handle {
	hs, _ := lockable.DoValue(ctx, &s.lock, func(context.Context) ([]astrofile.Handle, error) {
		return s.c.Handles(), nil
	})
	return hs
}

// At returns the handle at index i.
func (s *Synced) At(ctx context.Context, i int) (astrofile.Handle, error) {
	return lockable.DoValue(ctx, &s.lock, func(context.Context) (astrofile.Handle, error) {
		return s.c.At(i)
	})
}

// Sort reorders the collection and remembers fields for later reloads.
func (s *Synced) Sort(ctx context.Context, fields ...string) error {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	_, err := s.ops.Call(ctx, "sort", args...)
	return err
}

func (s *Synced) sort(_ context.Context, args ...any) (any, error) {
	fields := make([]string, 0, len(args))
	for _, a := range args {
		if f, ok := a.(string); ok {
			fields = append(fields, f)
		}
	}
	if _, err := s.c.Sort(fields...); err != nil {
		return nil, err
	}
	s.sortFields = fields
	return nil, nil
}

// SortFields returns the fields of the last successful Sort.
func (s *Synced) SortFields(ctx context.Context) []string {
	fields, _ := lockable.DoValue(ctx, &s.lock, func(context.Context) ([]string, error) {
		return slices.Clone(s.sortFields), nil
	})
	return fields
}

// Filter returns an unguarded filtered copy owned by the caller.
func (s *Synced) Filter(ctx context.Context, crit astrofile.Criteria) *Collection {
	c, _ := lockable.DoValue(ctx, &s.lock, func(context.Context) (*Collection, error) {
		return s.c.Filter(crit), nil
	})
	return c
}

// Basename joins the handles' basenames with sep.
func (s *Synced) Basename(ctx context.Context, sep string) string {
	b, _ := lockable.DoValue(ctx, &s.lock, func(context.Context) (string, error) {
		return s.c.Basename(sep), nil
	})
	return b
}

// HeaderValues returns the values of fields for every handle.
func (s *Synced) HeaderValues(ctx context.Context, fields ...string) []any {
	v, _ := lockable.DoValue(ctx, &s.lock, func(context.Context) ([]any, error) {
		return s.c.HeaderValues(fields...), nil
	})
	return v
}

// ReadData returns the stacked pixel cube.
func (s *Synced) ReadData(ctx context.Context) (*Cube, error) {
	return lockable.DoValue(ctx, &s.lock, func(ctx context.Context) (*Cube, error) {
		return s.c.ReadData(ctx)
	})
}

// Reload rebuilds the collection from its pattern and reapplies the last
// sort. If the sort fields no longer match any file the reloaded collection
// is kept in discovery order.
func (s *Synced) Reload(ctx context.Context) error {
	_, err := s.ops.Call(ctx, "reload")
	return err
}

func (s *Synced) reload(ctx context.Context, _ ...any) (any, error) {
	fresh, err := s.c.Reload()
	if err != nil {
		return nil, err
	}
	s.c = fresh
	if len(s.sortFields) == 0 {
		return nil, nil
	}
	if err := s.Sort(ctx, s.sortFields...); err != nil {
		log.Printf("Warning: reloaded collection kept unsorted: %v", err)
	}
	return nil, nil
}
