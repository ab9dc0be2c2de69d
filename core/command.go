package core

import (
	"errors"
	"sync"

	"stage/protocol"
)

// ErrUnknownOpcode is returned by CommandRegistry.Dispatch for opcodes
// nobody registered
var ErrUnknownOpcode = errors.New("unknown opcode")

// CommandHandler handles one opcode. It returns the status to send and an
// optional action to run once the status has been written.
type CommandHandler func(cmd *protocol.Command) (protocol.Status, func())

// Command is a registered opcode
type Command struct {
	Opcode  uint8
	Name    string
	Handler CommandHandler
}

// CommandRegistry maps opcodes to handlers
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint8]*Command
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint8]*Command),
	}
}

// Register adds or replaces the handler for opcode
func (r *CommandRegistry) Register(opcode uint8, name string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands[opcode] = &Command{
		Opcode:  opcode,
		Name:    name,
		Handler: handler,
	}
}

// GetCommand retrieves a command by opcode
func (r *CommandRegistry) GetCommand(opcode uint8) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[opcode]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmd.Opcode
func (r *CommandRegistry) Dispatch(cmd *protocol.Command) (protocol.Status, func(), error) {
	c, ok := r.GetCommand(cmd.Opcode)
	if !ok {
		return protocol.Status{}, nil, ErrUnknownOpcode
	}
	st, after := c.Handler(cmd)
	return st, after, nil
}
