// Package astrofile defines the capability set a data file handle must offer
// to be managed by a collection, and a FITS implementation of it.
package astrofile

import (
	mfs "github.com/CageChen/astrohub/internal/fs"
)

// Handle is one opened data file.
//
// Header returns one value per requested field, nil where the field is
// absent. Compare orders the receiver against other using the receiver's
// current sort key.
type Handle interface {
	Path() string
	Basename() string
	Header(fields ...string) []any
	Filter(c Criteria) bool
	ReadData() (*Image, error)
	SortKey() string
	SetSortKey(field string)
	Compare(other Handle) int
}

// Opener opens the file at path. A nil Handle with a nil error means the
// path is not a supported data file and should be skipped.
type Opener func(fsys mfs.FileSystem, path string) (Handle, error)

// Image is the pixel array of one file. Shape is row-major, slowest axis
// first; Pixels holds physical values (BZERO and BSCALE applied).
type Image struct {
	Shape  []int
	Pixels []float64
}
