package core

import (
	"errors"
	"sync"
)

var ErrUnknownCommand = errors.New("core: unknown command")

// CommandHandler decodes its own VLQ arguments from data and advances it.
type CommandHandler func(data *[]byte) error

// Command is one dictionary entry. Responses have a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "rpm=%f"
	Handler CommandHandler
}

// CommandRegistry assigns sequential IDs in registration order and builds
// the text dictionary host tools read.
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   []*Command
	nameToID   map[string]uint16
	dictionary string
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{nameToID: make(map[string]uint16)}
}

// Register adds a command and returns its ID. Registering a name twice
// returns the existing ID.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.nameToID[name]; ok {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{ID: id, Name: name, Format: format, Handler: handler})
	r.nameToID[name] = id

	line := name
	if format != "" {
		line += " " + format
	}
	r.dictionary += line + "\n"
	return id
}

// RegisterResponse adds a firmware-to-host message.
func (r *CommandRegistry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// Lookup returns the ID registered for name.
func (r *CommandRegistry) Lookup(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler for id.
func (r *CommandRegistry) Dispatch(id uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(id)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// Dictionary returns one "name format" line per entry, in ID order.
func (r *CommandRegistry) Dictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}
