package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFWriter opens a UDP GELF writer to a Graylog input. Each write
// becomes one GELF message.
func NewGELFWriter(address, facility string) (io.WriteCloser, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("gelf writer %s: %w", address, err)
	}
	if facility != "" {
		w.Facility = facility
	}
	return w, nil
}
