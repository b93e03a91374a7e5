package astrofile

import (
	"path/filepath"
	"testing"

	mfs "github.com/CageChen/astrohub/internal/fs"
	"github.com/CageChen/astrohub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFITS(t, filepath.Join(dir, "sci.fits"), testutil.FITS{
		Header: []testutil.Card{
			{Key: "OBJECT", Value: "M31 core"},
			{Key: "EXPTIME", Value: 30.5},
			{Key: "FILTER", Value: "R"},
			{Key: "PHOTOM", Value: false},
			{Key: "NOTE", Value: "it''s"},
		},
		BITPIX: 16,
		Axes:   []int{3, 2},
		Pixels: []float64{1, 2, 3, 4, 5, 6},
	})

	f, err := Open(mfs.NewLocalFS(dir), "sci.fits")
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, "sci.fits", f.Basename())
	assert.Equal(t, []any{"M31 core", 30.5, "R", false, nil}, f.Header("OBJECT", "exptime", "FILTER", "PHOTOM", "AIRMASS"))
	assert.Equal(t, int64(16), f.Header("BITPIX")[0])

	img, err := f.ReadData()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, img.Shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, img.Pixels)
}

func TestOpen_Quotes(t *testing.T) {
	c := parseCard("NOTE    = 'it''s here'         / a comment                                     ")
	assert.Equal(t, "NOTE", c.Key)
	assert.Equal(t, "it's here", c.Value)
	assert.Equal(t, "a comment", c.Comment)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input string
		want  any
	}{
		{"T", true},
		{"F", false},
		{"42", int64(42)},
		{"-1.5", -1.5},
		{"1.0D+02", 100.0},
		{"", nil},
		{"(1, 2)", "(1, 2)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseValue(tt.input), tt.input)
	}
}

func TestReadData_Scaled(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFITS(t, filepath.Join(dir, "scaled.fits"), testutil.FITS{
		Header: []testutil.Card{{Key: "BSCALE", Value: 2}, {Key: "BZERO", Value: 10}},
		BITPIX: 8,
		Axes:   []int{4},
		Pixels: []float64{0, 1, 2, 3},
	})
	testutil.WriteFITS(t, filepath.Join(dir, "float.fits"), testutil.FITS{
		BITPIX: -64,
		Axes:   []int{2},
		Pixels: []float64{0.25, -1.5},
	})

	fsys := mfs.NewLocalFS(dir)

	f, err := Open(fsys, "scaled.fits")
	require.NoError(t, err)
	img, err := f.ReadData()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12, 14, 16}, img.Pixels)

	f, err = Open(fsys, "float.fits")
	require.NoError(t, err)
	img, err = f.ReadData()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -1.5}, img.Pixels)
}

func TestReadData_BadAxes(t *testing.T) {
	tests := []struct {
		name string
		fits testutil.FITS
	}{
		{"negative naxis", testutil.FITS{NAXIS: -1}},
		{"negative axis length", testutil.FITS{Axes: []int{-4}}},
		{"overflowing size", testutil.FITS{Axes: []int{1 << 40, 1 << 40}}},
		{"truncated", testutil.FITS{Axes: []int{3000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteFITS(t, filepath.Join(dir, "bad.fits"), tt.fits)

			f, err := Open(mfs.NewLocalFS(dir), "bad.fits")
			require.NoError(t, err)
			require.NotNil(t, f)

			img, err := f.ReadData()
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, img)
		})
	}
}

func TestNewOpener_Skips(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), []byte("not data"))
	testutil.WriteFile(t, filepath.Join(dir, "fake.fits"), []byte("definitely not a FITS header"))
	testutil.WriteFITS(t, filepath.Join(dir, "ok.FITS"), testutil.FITS{})
	testutil.WriteFITS(t, filepath.Join(dir, "sub.fits", "x.fits"), testutil.FITS{})

	open := NewOpener(nil)
	fsys := mfs.NewLocalFS(dir)

	for _, name := range []string{"notes.txt", "fake.fits", "sub.fits"} {
		h, err := open(fsys, name)
		assert.NoError(t, err, name)
		assert.Nil(t, h, name)
	}

	h, err := open(fsys, "ok.FITS")
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestOpen_NoEnd(t *testing.T) {
	dir := t.TempDir()
	raw := []byte("SIMPLE  =                    T")
	for len(raw) < blockSize {
		raw = append(raw, ' ')
	}
	testutil.WriteFile(t, filepath.Join(dir, "broken.fits"), raw)

	_, err := Open(mfs.NewLocalFS(dir), "broken.fits")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCompare(t *testing.T) {
	a := &File{cards: []Card{{Key: "EXPTIME", Value: int64(10)}}, index: map[string]int{"EXPTIME": 0}}
	b := &File{cards: []Card{{Key: "EXPTIME", Value: 2.5}}, index: map[string]int{"EXPTIME": 0}}
	c := &File{index: map[string]int{}}

	a.SetSortKey("EXPTIME")
	b.SetSortKey("EXPTIME")
	c.SetSortKey("EXPTIME")

	assert.Equal(t, 1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(a))
	assert.Equal(t, -1, a.Compare(c))
	assert.Equal(t, 1, c.Compare(a))
}
