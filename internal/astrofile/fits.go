package astrofile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	mfs "github.com/CageChen/astrohub/internal/fs"
)

const (
	blockSize = 2880
	cardSize  = 80
)

// ErrMalformed is returned when a file claims to be FITS but its header or
// data section cannot be decoded.
var ErrMalformed = errors.New("malformed FITS file")

// Card is a single header record.
type Card struct {
	Key     string
	Value   any
	Comment string
}

var _ Handle = (*File)(nil)

// File is a FITS file whose primary header has been parsed. Pixel data is
// read on demand.
type File struct {
	fsys       mfs.FileSystem
	path       string
	cards      []Card
	index      map[string]int
	dataOffset int
	sortKey    string
}

// DefaultExtensions lists the file extensions NewOpener accepts when given none.
var DefaultExtensions = []string{".fits", ".fit", ".fts"}

// NewOpener returns an Opener for FITS files carrying one of the given
// extensions (case-insensitive). Other files are skipped.
func NewOpener(extensions []string) Opener {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return func(fsys mfs.FileSystem, p string) (Handle, error) {
		ext := strings.ToLower(path.Ext(p))
		supported := false
		for _, e := range extensions {
			if ext == strings.ToLower(e) {
				supported = true
				break
			}
		}
		if !supported {
			return nil, nil
		}
		f, err := Open(fsys, p)
		if err != nil || f == nil {
			return nil, err
		}
		return f, nil
	}
}

// Open parses the primary header of the FITS file at p. It returns nil and
// no error for directories and for files that do not start with SIMPLE.
func Open(fsys mfs.FileSystem, p string) (*File, error) {
	info, err := fsys.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, nil
	}
	raw, err := fsys.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if len(raw) < cardSize || strings.TrimSpace(string(raw[:8])) != "SIMPLE" {
		return nil, nil
	}

	f := &File{fsys: fsys, path: p, index: make(map[string]int)}
	end := -1
	for off := 0; off+cardSize <= len(raw); off += cardSize {
		card := parseCard(string(raw[off : off+cardSize]))
		if card.Key == "END" {
			end = off + cardSize
			break
		}
		if card.Key == "" {
			continue
		}
		if _, seen := f.index[card.Key]; !seen && card.Key != "COMMENT" && card.Key != "HISTORY" {
			f.index[card.Key] = len(f.cards)
		}
		f.cards = append(f.cards, card)
	}
	if end < 0 {
		return nil, fmt.Errorf("%s: %w: no END card", p, ErrMalformed)
	}
	f.dataOffset = (end + blockSize - 1) / blockSize * blockSize
	return f, nil
}

func parseCard(s string) Card {
	key := strings.TrimSpace(s[:8])
	if len(s) < 10 || s[8:10] != "= " {
		return Card{Key: key, Comment: strings.TrimSpace(s[8:])}
	}
	body := strings.TrimSpace(s[10:])
	if strings.HasPrefix(body, "'") {
		var sb strings.Builder
		i := 1
		for i < len(body) {
			if body[i] == '\'' {
				if i+1 < len(body) && body[i+1] == '\'' {
					sb.WriteByte('\'')
					i += 2
					continue
				}
				break
			}
			sb.WriteByte(body[i])
			i++
		}
		comment := ""
		if rest := body[min(i+1, len(body)):]; strings.Contains(rest, "/") {
			comment = strings.TrimSpace(rest[strings.Index(rest, "/")+1:])
		}
		return Card{Key: key, Value: strings.TrimRight(sb.String(), " "), Comment: comment}
	}

	comment := ""
	if i := strings.IndexByte(body, '/'); i >= 0 {
		comment = strings.TrimSpace(body[i+1:])
		body = strings.TrimSpace(body[:i])
	}
	return Card{Key: key, Value: parseValue(body), Comment: comment}
}

func parseValue(s string) any {
	switch s {
	case "":
		return nil
	case "T":
		return true
	case "F":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(s), 64); err == nil {
		return f
	}
	return s
}

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// Basename returns the last element of the file's path.
func (f *File) Basename() string { return path.Base(f.path) }

// Cards returns the header records in file order.
func (f *File) Cards() []Card { return f.cards }

// Header returns the values of the given keywords, nil where absent.
func (f *File) Header(fields ...string) []any {
	out := make([]any, len(fields))
	for i, field := range fields {
		out[i] = f.value(field)
	}
	return out
}

func (f *File) value(field string) any {
	if i, ok := f.index[strings.ToUpper(strings.TrimSpace(field))]; ok {
		return f.cards[i].Value
	}
	return nil
}

// Filter reports whether the header satisfies c.
func (f *File) Filter(c Criteria) bool { return c.Match(f.value) }

func (f *File) SortKey() string         { return f.sortKey }
func (f *File) SetSortKey(field string) { f.sortKey = field }

// Compare orders f against other by the value of f's sort key.
func (f *File) Compare(other Handle) int {
	return CompareValues(f.value(f.sortKey), other.Header(f.sortKey)[0])
}

func (f *File) intValue(key string, def int64) int64 {
	switch v := f.value(key).(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return def
}

func (f *File) floatValue(key string, def float64) float64 {
	if v, ok := toFloat(f.value(key)); ok {
		if _, isStr := f.value(key).(string); !isStr {
			return v
		}
	}
	return def
}

// ReadData decodes the primary data array.
func (f *File) ReadData() (*Image, error) {
	bitpix := f.intValue("BITPIX", 0)
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return nil, fmt.Errorf("%s: %w: unsupported BITPIX %d", f.path, ErrMalformed, bitpix)
	}
	width := int(bitpix) / 8
	if width < 0 {
		width = -width
	}

	naxis := f.intValue("NAXIS", 0)
	if naxis < 0 || naxis > 999 {
		return nil, fmt.Errorf("%s: %w: NAXIS %d out of range", f.path, ErrMalformed, naxis)
	}
	shape := make([]int, naxis)
	count := 1
	for i := range int(naxis) {
		n := f.intValue(fmt.Sprintf("NAXIS%d", i+1), 0)
		if n < 0 {
			return nil, fmt.Errorf("%s: %w: NAXIS%d is negative", f.path, ErrMalformed, i+1)
		}
		if n > 0 && count > math.MaxInt/width/int(n) {
			return nil, fmt.Errorf("%s: %w: data size overflows", f.path, ErrMalformed)
		}
		shape[int(naxis)-1-i] = int(n)
		count *= int(n)
	}
	if naxis == 0 {
		count = 0
	}

	raw, err := f.fsys.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	if count*width > len(raw)-f.dataOffset {
		return nil, fmt.Errorf("%s: %w: data section truncated", f.path, ErrMalformed)
	}
	data := raw[f.dataOffset : f.dataOffset+count*width]

	bscale := f.floatValue("BSCALE", 1)
	bzero := f.floatValue("BZERO", 0)
	pixels := make([]float64, count)
	for i := range pixels {
		b := data[i*width : (i+1)*width]
		var v float64
		switch bitpix {
		case 8:
			v = float64(b[0])
		case 16:
			v = float64(int16(binary.BigEndian.Uint16(b)))
		case 32:
			v = float64(int32(binary.BigEndian.Uint32(b)))
		case 64:
			v = float64(int64(binary.BigEndian.Uint64(b)))
		case -32:
			v = float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		case -64:
			v = math.Float64frombits(binary.BigEndian.Uint64(b))
		}
		pixels[i] = bzero + bscale*v
	}
	return &Image{Shape: shape, Pixels: pixels}, nil
}
