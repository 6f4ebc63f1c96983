package fitsfile

import (
	"bytes"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

const (
	blockSize = 2880
	cardSize  = 80
	maxAxes   = 999
)

// hduSize holds the structural keywords that decide how many bytes an HDU
// occupies.
type hduSize struct {
	bitpix  int64
	naxis   int64
	axes    []int64
	pcount  int64
	gcount  int64
	tfields int64
}

// checkLayout walks the header blocks of data and verifies that every HDU's
// declared data fits inside the file. It returns the offset where the last
// HDU ends; trailing blank or zero blocks are not part of the result.
func checkLayout(data []byte) (int, error) {
	if len(data) < blockSize || !bytes.HasPrefix(data, []byte("SIMPLE  =")) {
		return 0, fmt.Errorf("%w: missing SIMPLE card", ErrMalformed)
	}

	off := 0
	for off < len(data) {
		if off > 0 && isPadding(data[off:]) {
			break
		}
		size, next, err := scanHeader(data, off)
		if err != nil {
			return 0, err
		}
		n, err := size.dataBytes()
		if err != nil {
			return 0, fmt.Errorf("%w: HDU at byte %d: %w", ErrMalformed, off, err)
		}
		if n > uint64(len(data)-next) {
			return 0, fmt.Errorf("%w: HDU at byte %d declares %d data bytes, %d remain", ErrMalformed, off, n, len(data)-next)
		}
		off = next + int(alignBlock(n))
		if off > len(data) {
			off = len(data)
		}
	}
	return off, nil
}

func scanHeader(data []byte, off int) (hduSize, int, error) {
	size := hduSize{gcount: 1}
	for pos := off; pos+blockSize <= len(data); pos += blockSize {
		for c := pos; c < pos+blockSize; c += cardSize {
			card := data[c : c+cardSize]
			key := strings.TrimSpace(string(card[:8]))
			if key == "END" {
				if err := size.complete(); err != nil {
					return size, 0, fmt.Errorf("%w: HDU at byte %d: %w", ErrMalformed, off, err)
				}
				return size, pos + blockSize, nil
			}
			if !bytes.Equal(card[8:10], []byte("= ")) {
				continue
			}
			if err := size.set(key, card[10:]); err != nil {
				return size, 0, fmt.Errorf("%w: HDU at byte %d: %w", ErrMalformed, off, err)
			}
		}
	}
	return size, 0, fmt.Errorf("%w: HDU at byte %d has no END card", ErrMalformed, off)
}

func (s *hduSize) set(key string, raw []byte) error {
	var dst *int64
	switch {
	case key == "BITPIX":
		dst = &s.bitpix
	case key == "NAXIS":
		dst = &s.naxis
	case key == "PCOUNT":
		dst = &s.pcount
	case key == "GCOUNT":
		dst = &s.gcount
	case key == "TFIELDS":
		dst = &s.tfields
	case strings.HasPrefix(key, "NAXIS"):
		i, err := strconv.Atoi(key[len("NAXIS"):])
		if err != nil || i < 1 || i > maxAxes {
			return nil
		}
		for len(s.axes) < i {
			s.axes = append(s.axes, -1)
		}
		dst = &s.axes[i-1]
	default:
		return nil
	}

	text := string(raw)
	if i := strings.IndexByte(text, '/'); i >= 0 {
		text = text[:i]
	}
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return fmt.Errorf("%s is not an integer", key)
	}
	*dst = v
	return nil
}

func (s *hduSize) complete() error {
	switch s.bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return fmt.Errorf("invalid BITPIX %d", s.bitpix)
	}
	if s.naxis < 0 || s.naxis > maxAxes {
		return fmt.Errorf("invalid NAXIS %d", s.naxis)
	}
	if int64(len(s.axes)) < s.naxis {
		return fmt.Errorf("missing NAXIS%d", len(s.axes)+1)
	}
	for i, n := range s.axes[:s.naxis] {
		if n < 0 || n > math.MaxInt32 {
			return fmt.Errorf("invalid NAXIS%d %d", i+1, n)
		}
	}
	if s.pcount < 0 || s.gcount < 0 {
		return fmt.Errorf("invalid PCOUNT/GCOUNT %d/%d", s.pcount, s.gcount)
	}
	if s.tfields < 0 || s.tfields > maxAxes {
		return fmt.Errorf("invalid TFIELDS %d", s.tfields)
	}
	return nil
}

// dataBytes is |BITPIX|/8 * GCOUNT * (PCOUNT + NAXIS1*...*NAXISn).
func (s hduSize) dataBytes() (uint64, error) {
	if s.naxis == 0 {
		return 0, nil
	}
	n := uint64(1)
	for _, a := range s.axes[:s.naxis] {
		var ok bool
		if n, ok = mul(n, uint64(a)); !ok {
			return 0, fmt.Errorf("data size overflows")
		}
	}
	n, carry := bits.Add64(n, uint64(s.pcount), 0)
	if carry != 0 {
		return 0, fmt.Errorf("data size overflows")
	}
	n, ok := mul(n, uint64(s.gcount))
	if !ok {
		return 0, fmt.Errorf("data size overflows")
	}
	if n, ok = mul(n, uint64(abs(s.bitpix)/8)); !ok {
		return 0, fmt.Errorf("data size overflows")
	}
	return n, nil
}

func mul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func alignBlock(n uint64) uint64 {
	return (n + blockSize - 1) / blockSize * blockSize
}

func isPadding(b []byte) bool {
	for _, c := range b {
		if c != 0 && c != ' ' {
			return false
		}
	}
	return true
}
