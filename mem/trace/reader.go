// Package trace reads and writes memory access traces, and records what a
// cache does with them.
//
// A trace is a text file with one access per line:
//
//	<pc> <address> [R|W]
//
// Numbers are decimal or 0x-prefixed hexadecimal. The access kind defaults to
// a read. Blank lines and anything after a '#' are ignored.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/rdpcache/mem/cache"
)

// ErrMalformedRecord is returned when a line of a trace cannot be parsed.
var ErrMalformedRecord = errors.New("malformed trace record")

// A Reader reads requests from a trace.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(r),
	}
}

// Next returns the next request. It returns io.EOF when the trace ends.
func (r *Reader) Next() (cache.Request, error) {
	for r.scanner.Scan() {
		r.line++

		text := r.scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		req, err := parseRecord(fields)
		if err != nil {
			return cache.Request{}, fmt.Errorf("line %d: %w", r.line, err)
		}

		return req, nil
	}

	if err := r.scanner.Err(); err != nil {
		return cache.Request{}, err
	}

	return cache.Request{}, io.EOF
}

func parseRecord(fields []string) (cache.Request, error) {
	if len(fields) < 2 || len(fields) > 3 {
		return cache.Request{}, fmt.Errorf("%w: want 2 or 3 fields, got %d",
			ErrMalformedRecord, len(fields))
	}

	pc, err := strconv.ParseUint(fields[0], 0, 64)
	if err != nil {
		return cache.Request{}, fmt.Errorf("%w: pc %q", ErrMalformedRecord,
			fields[0])
	}

	address, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return cache.Request{}, fmt.Errorf("%w: address %q",
			ErrMalformedRecord, fields[1])
	}

	req := cache.Request{PC: pc, Address: address}

	if len(fields) == 3 {
		switch fields[2] {
		case "R", "r":
		case "W", "w":
			req.IsWrite = true
		default:
			return cache.Request{}, fmt.Errorf("%w: access kind %q",
				ErrMalformedRecord, fields[2])
		}
	}

	return req, nil
}

// ReadAll reads every request of a trace.
func ReadAll(r io.Reader) ([]cache.Request, error) {
	reader := NewReader(r)

	var reqs []cache.Request

	for {
		req, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return reqs, nil
		}

		if err != nil {
			return nil, err
		}

		reqs = append(reqs, req)
	}
}
