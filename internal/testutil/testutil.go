// Package testutil provides fixtures for astrohub tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const blockSize = 2880

// Card is a single header keyword and value.
type Card struct {
	Key   string
	Value any
}

// FITS describes a primary-HDU-only FITS file. Axes are given in FITS order
// (NAXIS1 first); Pixels are in storage order. A non-zero NAXIS replaces
// the axis count written to the header.
type FITS struct {
	Header []Card
	BITPIX int
	NAXIS  int
	Axes   []int
	Pixels []float64
}

// Bytes encodes f as a FITS file.
func (f FITS) Bytes() []byte {
	bitpix := f.BITPIX
	if bitpix == 0 {
		bitpix = 16
	}

	var hdr bytes.Buffer
	writeCard(&hdr, "SIMPLE", true)
	writeCard(&hdr, "BITPIX", bitpix)
	naxis := len(f.Axes)
	if f.NAXIS != 0 {
		naxis = f.NAXIS
	}
	writeCard(&hdr, "NAXIS", naxis)
	for i, n := range f.Axes {
		writeCard(&hdr, fmt.Sprintf("NAXIS%d", i+1), n)
	}
	for _, c := range f.Header {
		writeCard(&hdr, c.Key, c.Value)
	}
	hdr.WriteString(fmt.Sprintf("%-80s", "END"))
	pad(&hdr, ' ')

	var data bytes.Buffer
	for _, p := range f.Pixels {
		switch bitpix {
		case 8:
			data.WriteByte(uint8(p))
		case 16:
			_ = binary.Write(&data, binary.BigEndian, int16(p))
		case 32:
			_ = binary.Write(&data, binary.BigEndian, int32(p))
		case 64:
			_ = binary.Write(&data, binary.BigEndian, int64(p))
		case -32:
			_ = binary.Write(&data, binary.BigEndian, math.Float32bits(float32(p)))
		case -64:
			_ = binary.Write(&data, binary.BigEndian, math.Float64bits(p))
		}
	}
	if data.Len() > 0 {
		pad(&data, 0)
	}
	return append(hdr.Bytes(), data.Bytes()...)
}

func writeCard(buf *bytes.Buffer, key string, value any) {
	var v string
	switch x := value.(type) {
	case nil:
		buf.WriteString(fmt.Sprintf("%-80s", key))
		return
	case bool:
		v = "F"
		if x {
			v = "T"
		}
		v = fmt.Sprintf("%20s", v)
	case string:
		v = fmt.Sprintf("%-20s", "'"+strings.ReplaceAll(x, "'", "''")+"'")
	case float64:
		v = fmt.Sprintf("%20s", fmt.Sprintf("%G", x))
	default:
		v = fmt.Sprintf("%20v", x)
	}
	buf.WriteString(fmt.Sprintf("%-80s", fmt.Sprintf("%-8s= %s", key, v)))
}

func pad(buf *bytes.Buffer, b byte) {
	if rem := buf.Len() % blockSize; rem != 0 {
		buf.Write(bytes.Repeat([]byte{b}, blockSize-rem))
	}
}

// WriteFITS writes f to path, creating parent directories as needed.
func WriteFITS(t *testing.T, path string, f FITS) {
	t.Helper()
	WriteFile(t, path, f.Bytes())
}

// WriteFile writes content to path, creating parent directories as needed.
func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
