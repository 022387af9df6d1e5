package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	uuid "github.com/google/uuid"
)

// REPL struct.
type REPL struct {
	commands map[string]func(string, *REPLConfig) error
	help     map[string]string
	history  *History
}

// REPL Config struct.
type REPLConfig struct {
	writer   io.Writer
	clientId uuid.UUID
}

// Get writer.
func (replConfig *REPLConfig) GetWriter() io.Writer {
	return replConfig.writer
}

// Get address.
func (replConfig *REPLConfig) GetAddr() uuid.UUID {
	return replConfig.clientId
}

// Construct an empty REPL.
func NewRepl() *REPL {
	r := REPL{make(map[string]func(string, *REPLConfig) error), make(map[string]string), nil}
	return &r
}

// Combines a slice of REPLs.
func CombineRepls(repls []*REPL) (*REPL, error) {
	newRepl := NewRepl()
	if len(repls) == 0 {
		return newRepl, nil
	}
	for _, repl := range repls {
		for cmd := range repl.commands {
			if _, exist := newRepl.commands[cmd]; exist {
				return nil, errors.New("overlapping triggers")
			}
			newRepl.commands[cmd] = repl.commands[cmd]
			newRepl.help[cmd] = repl.help[cmd]
		}
	}
	return newRepl, nil
}

// Get commands.
func (r *REPL) GetCommands() map[string]func(string, *REPLConfig) error {
	return r.commands
}

// Get help.
func (r *REPL) GetHelp() map[string]string {
	return r.help
}

// SetHistory records every command line in h and enables the history command.
func (r *REPL) SetHistory(h *History) {
	r.history = h
}

// Add a command, along with its help string, to the set of commands.
func (r *REPL) AddCommand(trigger string, action func(string, *REPLConfig) error, help string) error {
	if strings.HasPrefix(trigger, ".") || trigger == "history" {
		return fmt.Errorf("cannot add meta command %q", trigger)
	}
	r.commands[trigger] = action
	r.help[trigger] = help
	return nil
}

// Return all REPL usage information as a string.
func (r *REPL) HelpString() string {
	cmds := make([]string, 0, len(r.help))
	for cmd := range r.help {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	var sb strings.Builder
	for _, cmd := range cmds {
		sb.WriteString(cmd + ": " + r.help[cmd] + "\n")
	}
	if r.history != nil {
		sb.WriteString("history: Show or export past commands. usage: history [all] [n] | history export <path>\n")
	}
	return sb.String()
}

// Run the REPL until the reader is exhausted.
func (r *REPL) Run(reader io.Reader, writer io.Writer, clientId uuid.UUID, prompt string) {
	scanner := bufio.NewScanner(reader)
	replConfig := &REPLConfig{writer: writer, clientId: clientId}
	// Begin the repl loop!
	io.WriteString(writer, prompt)
	for scanner.Scan() {
		payload := scanner.Text()
		fields := strings.Fields(payload)
		if len(fields) == 0 {
			io.WriteString(writer, prompt)
			continue
		}
		trigger := cleanInput(fields[0])
		// Check for a meta-command.
		if trigger == ".help" {
			io.WriteString(writer, r.HelpString())
			io.WriteString(writer, prompt)
			continue
		}
		if trigger == "history" && r.history != nil {
			if err := r.handleHistory(fields, clientId, writer); err != nil {
				io.WriteString(writer, fmt.Sprintf("%v\n", err))
			}
			io.WriteString(writer, prompt)
			continue
		}
		if r.history != nil {
			if err := r.history.Append(clientId, payload); err != nil {
				io.WriteString(writer, fmt.Sprintf("history error: %v\n", err))
			}
		}
		// Else, check user commands.
		if command, exists := r.commands[trigger]; exists {
			err := command(payload, replConfig)
			if err != nil {
				io.WriteString(writer, fmt.Sprintf("%v\n", err))
			}
		} else {
			io.WriteString(writer, "command not found\n")
		}
		io.WriteString(writer, prompt)
	}
	// Print an additional line if we encountered an EOF character.
	io.WriteString(writer, "\n")
}

// cleanInput preprocesses input to the db repl.
func cleanInput(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// handleHistory runs "history [all] [n]" and "history export <path>".
// Without "all" only the commands of the current session are shown.
func (r *REPL) handleHistory(fields []string, clientId uuid.UUID, w io.Writer) error {
	if len(fields) == 3 && fields[1] == "export" {
		if err := r.history.Export(fields[2]); err != nil {
			return fmt.Errorf("history error: %v", err)
		}
		io.WriteString(w, fmt.Sprintf("history exported to %s.\n", fields[2]))
		return nil
	}
	args := fields[1:]
	session := clientId
	if len(args) > 0 && args[0] == "all" {
		session = uuid.Nil
		args = args[1:]
	}
	if len(args) > 1 {
		return fmt.Errorf("usage: history [all] [n] | history export <path>")
	}
	n := 10
	if len(args) == 1 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("history error: %v", err)
		}
	}
	entries, err := r.history.Tail(n, session)
	if err != nil {
		return fmt.Errorf("history error: %v", err)
	}
	for _, entry := range entries {
		if session == uuid.Nil {
			io.WriteString(w, fmt.Sprintf("[%s] %s\n", shortSession(entry.Session), entry.Line))
		} else {
			io.WriteString(w, entry.Line+"\n")
		}
	}
	return nil
}

// shortSession abbreviates a session id for display.
func shortSession(session uuid.UUID) string {
	return session.String()[:8]
}
