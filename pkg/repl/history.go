package repl

import (
	"io"
	"os"
	"strings"
	"sync"

	backscanner "github.com/icza/backscanner"
	copy "github.com/otiai10/copy"

	uuid "github.com/google/uuid"
)

// History is an append-only file of command lines.
type History struct {
	mtx  sync.Mutex
	path string
	fd   *os.File
}

// OpenHistory opens or creates the history file at path.
func OpenHistory(path string) (*History, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return &History{path: path, fd: fd}, nil
}

// Get the path of the history file.
func (h *History) GetPath() string {
	return h.path
}

// Entry is one recorded command line and the session that ran it.
type Entry struct {
	Session uuid.UUID
	Line    string
}

// Append records a command line run by session.
func (h *History) Append(session uuid.UUID, line string) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	_, err := h.fd.WriteString(session.String() + " " + line + "\n")
	return err
}

// parseEntry splits a history line. Lines without a session keep uuid.Nil.
func parseEntry(line string) Entry {
	if fields := strings.SplitN(line, " ", 2); len(fields) == 2 {
		if session, err := uuid.Parse(fields[0]); err == nil {
			return Entry{Session: session, Line: fields[1]}
		}
	}
	return Entry{Session: uuid.Nil, Line: line}
}

// Tail returns up to the last n entries of session, oldest first.
// uuid.Nil selects every session.
func (h *History) Tail(n int, session uuid.UUID) ([]Entry, error) {
	if n < 0 {
		n = 0
	}
	h.mtx.Lock()
	defer h.mtx.Unlock()
	fstats, err := h.fd.Stat()
	if err != nil {
		return nil, err
	}
	scanner := backscanner.New(h.fd, int(fstats.Size()))
	entries := make([]Entry, 0, n)
	for len(entries) < n {
		line, _, err := scanner.Line()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		// The file ends with a newline, which yields an empty last line.
		if line == "" {
			continue
		}
		entry := parseEntry(line)
		if session != uuid.Nil && entry.Session != session {
			continue
		}
		entries = append([]Entry{entry}, entries...)
	}
	return entries, nil
}

// Export copies the history file to dst.
func (h *History) Export(dst string) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if err := h.fd.Sync(); err != nil {
		return err
	}
	return copy.Copy(h.path, dst)
}

// Close the history file.
func (h *History) Close() error {
	return h.fd.Close()
}
