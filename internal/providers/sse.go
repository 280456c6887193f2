package providers

import (
	"bufio"
	"io"
	"strings"
)

const sseDone = "[DONE]"

// sseScanner splits a Server-Sent Events body into event payloads. Only the
// data field is kept; event names, ids and comments are ignored since neither
// backend relies on them.
type sseScanner struct {
	reader *bufio.Reader
	data   string
	err    error
}

func newSSEScanner(r io.Reader) *sseScanner {
	return &sseScanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event carrying data. It returns false at the end
// of the body or on a read error; Err tells the two apart.
func (s *sseScanner) Next() bool {
	var lines []string
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			if err != io.EOF {
				s.err = err
				return false
			}
			if len(lines) > 0 {
				s.data = strings.Join(lines, "\n")
				return true
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(lines) > 0 {
				s.data = strings.Join(lines, "\n")
				return true
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field == "data" {
			lines = append(lines, strings.TrimPrefix(value, " "))
		}
		if err == io.EOF {
			if len(lines) > 0 {
				s.data = strings.Join(lines, "\n")
				return true
			}
			return false
		}
	}
}

// Data is the payload of the current event.
func (s *sseScanner) Data() string { return s.data }

// Err returns the read error that stopped the scanner, if any.
func (s *sseScanner) Err() error { return s.err }
