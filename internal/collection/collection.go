// Package collection manages an ordered set of data files discovered from a
// glob pattern: iteration, indexing, sorting by header field, filtering,
// header value extraction, and stacking pixel data into a cube.
//
// A Collection is not safe for concurrent mutation; wrap it in a Synced when
// it is shared between goroutines.
package collection

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"path"
	"slices"
	"strings"

	"github.com/CageChen/astrohub/internal/astrofile"
	mfs "github.com/CageChen/astrohub/internal/fs"
	"golang.org/x/sync/errgroup"
)

// DefaultSeparator joins basenames when no separator is given.
const DefaultSeparator = ", "

const readConcurrency = 8

var (
	// ErrInvalidPath is returned when a pattern matches no filesystem entries.
	ErrInvalidPath = errors.New("invalid path to files")
	// ErrInvalidArgument is returned by Sort for missing or unknown fields.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIndexOutOfRange is returned by At.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrShapeMismatch is returned by ReadData when files differ in shape.
	ErrShapeMismatch = errors.New("data shapes differ")
)

// Cube is the pixel data of every file stacked along a new leading axis.
type Cube struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"-"`
}

// Option configures a Collection.
type Option func(*Collection)

// WithSkip excludes matched paths and directory children for which skip
// returns true before they reach the opener.
func WithSkip(skip func(path string) bool) Option {
	return func(c *Collection) { c.skip = skip }
}

// Collection is an ordered list of file handles.
type Collection struct {
	fsys    mfs.FileSystem
	pattern string
	open    astrofile.Opener
	skip    func(string) bool
	handles []astrofile.Handle

	cube   *Cube
	loaded bool
}

// New expands pattern on fsys and opens every match. Directories are
// expanded one level, their children opened in listing order at the
// directory's position. Paths the opener declines are skipped.
func New(fsys mfs.FileSystem, pattern string, open astrofile.Opener, opts ...Option) (*Collection, error) {
	c := &Collection{fsys: fsys, pattern: pattern, open: open}
	for _, opt := range opts {
		opt(c)
	}

	matches, err := fsys.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q matched nothing", ErrInvalidPath, pattern)
	}

	for _, m := range matches {
		info, err := fsys.Stat(m)
		if err != nil {
			log.Printf("Warning: cannot stat %s: %v", m, err)
			continue
		}
		if !info.IsDir {
			c.add(m)
			continue
		}
		entries, err := fsys.ReadDir(m)
		if err != nil {
			log.Printf("Warning: cannot list %s: %v", m, err)
			continue
		}
		for _, e := range entries {
			c.add(path.Join(m, e.Name))
		}
	}
	return c, nil
}

func (c *Collection) add(p string) {
	if c.skip != nil && c.skip(p) {
		return
	}
	h, err := c.open(c.fsys, p)
	if err != nil {
		log.Printf("Warning: skipping %s: %v", p, err)
		return
	}
	if h != nil {
		c.handles = append(c.handles, h)
	}
}

// Reload builds a fresh collection from the same pattern and options.
func (c *Collection) Reload() (*Collection, error) {
	return New(c.fsys, c.pattern, c.open, WithSkip(c.skip))
}

// Pattern returns the glob pattern the collection was built from.
func (c *Collection) Pattern() string { return c.pattern }

// Len returns the number of handles.
func (c *Collection) Len() int { return len(c.handles) }

// All iterates over the handles in their current order.
func (c *Collection) All() iter.Seq2[int, astrofile.Handle] {
	return func(yield func(int, astrofile.Handle) bool) {
		for i, h := range c.handles {
			if !yield(i, h) {
				return
			}
		}
	}
}

// Handles returns a copy of the handle list.
func (c *Collection) Handles() []astrofile.Handle {
	return slices.Clone(c.handles)
}

// At returns the handle at index i. Negative indices count from the end.
func (c *Collection) At(i int) (astrofile.Handle, error) {
	n := len(c.handles)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, n)
	}
	return c.handles[i], nil
}

// Slice returns the handles in [start, end). Negative bounds count from the
// end and out-of-range bounds are clamped, so Slice never fails.
func (c *Collection) Slice(start, end int) []astrofile.Handle {
	n := len(c.handles)
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		return max(0, min(i, n))
	}
	start, end = clamp(start), clamp(end)
	if start >= end {
		return []astrofile.Handle{}
	}
	return slices.Clone(c.handles[start:end])
}

// Sort orders the collection in place by the first of fields that any file
// carries a value for, and returns the collection. Files lacking the chosen
// field sort last. On error the order is left unchanged.
func (c *Collection) Sort(fields ...string) (*Collection, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: at least one header field must be given to sort", ErrInvalidArgument)
	}
	key := c.probe(fields)
	if key == "" {
		return nil, fmt.Errorf("%w: none of the requested sort fields were found: %s",
			ErrInvalidArgument, strings.Join(fields, ", "))
	}

	for _, h := range c.handles {
		h.SetSortKey(key)
	}
	slices.SortStableFunc(c.handles, func(a, b astrofile.Handle) int {
		return a.Compare(b)
	})
	c.cube, c.loaded = nil, false
	return c, nil
}

// probe returns the first field any handle has a non-empty value for.
func (c *Collection) probe(fields []string) string {
	for _, f := range fields {
		for _, h := range c.handles {
			if !astrofile.IsEmpty(h.Header(f)[0]) {
				return f
			}
		}
	}
	return ""
}

// Filter returns a new collection holding the handles that satisfy crit.
// The receiver is not modified.
func (c *Collection) Filter(crit astrofile.Criteria) *Collection {
	out := &Collection{fsys: c.fsys, pattern: c.pattern, open: c.open, skip: c.skip}
	out.handles = make([]astrofile.Handle, 0, len(c.handles))
	for _, h := range c.handles {
		if h.Filter(crit) {
			out.handles = append(out.handles, h)
		}
	}
	return out
}

// Basename joins the handles' basenames with sep, or DefaultSeparator when
// sep is empty.
func (c *Collection) Basename(sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	names := make([]string, len(c.handles))
	for i, h := range c.handles {
		names[i] = h.Basename()
	}
	return strings.Join(names, sep)
}

// HeaderValues returns, per handle, the values of fields. With a single
// field each entry is the bare value; otherwise each entry is a []any.
func (c *Collection) HeaderValues(fields ...string) []any {
	if len(fields) == 1 {
		return c.HeaderValuesFunc(func(v []any) any { return v[0] }, fields...)
	}
	return c.HeaderValuesFunc(nil, fields...)
}

// HeaderValuesFunc is HeaderValues with an explicit mapping applied to each
// handle's values. A nil mapOut keeps the raw []any.
func (c *Collection) HeaderValuesFunc(mapOut func([]any) any, fields ...string) []any {
	out := make([]any, len(c.handles))
	for i, h := range c.handles {
		v := h.Header(fields...)
		if mapOut != nil {
			out[i] = mapOut(v)
		} else {
			out[i] = v
		}
	}
	return out
}

// ReadData reads every file's pixel data and stacks it into a cube. The
// result is cached until the collection is reordered.
func (c *Collection) ReadData(ctx context.Context) (*Cube, error) {
	if c.loaded {
		return c.cube, nil
	}

	images := make([]*astrofile.Image, len(c.handles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, h := range c.handles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := h.ReadData()
			if err != nil {
				return fmt.Errorf("read %s: %w", h.Path(), err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cube, err := stack(images)
	if err != nil {
		return nil, err
	}
	c.cube, c.loaded = cube, true
	return cube, nil
}

func stack(images []*astrofile.Image) (*Cube, error) {
	if len(images) == 0 {
		return &Cube{Shape: []int{0}}, nil
	}
	shape := images[0].Shape
	size := len(images[0].Pixels)
	cube := &Cube{
		Shape: append([]int{len(images)}, shape...),
		Data:  make([]float64, 0, size*len(images)),
	}
	for i, img := range images {
		if !slices.Equal(img.Shape, shape) || len(img.Pixels) != size {
			return nil, fmt.Errorf("%w: file %d has shape %v, expected %v", ErrShapeMismatch, i, img.Shape, shape)
		}
		cube.Data = append(cube.Data, img.Pixels...)
	}
	return cube, nil
}

// String returns a short human-readable label.
func (c *Collection) String() string {
	return fmt.Sprintf("collection[%d]: %s", len(c.handles), c.Basename(DefaultSeparator))
}
