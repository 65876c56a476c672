package trace

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sarchlab/rdpcache/mem/cache"
)

// A Writer writes requests in the format that Reader reads.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one request.
func (w *Writer) Write(req cache.Request) error {
	kind := "R"
	if req.IsWrite {
		kind = "W"
	}

	_, err := fmt.Fprintf(w.w, "0x%x 0x%x %s\n", req.PC, req.Address, kind)

	return err
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
