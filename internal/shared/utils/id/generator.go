package id

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Strategy identifies the identifier generation algorithm to use.
type Strategy int

const (
	// StrategyKSUID generates lexicographically sortable identifiers using KSUID.
	StrategyKSUID Strategy = iota
	// StrategyUUIDv7 generates time-ordered identifiers using UUID version 7.
	StrategyUUIDv7
)

var defaultGenerator = &Generator{strategy: StrategyKSUID}

// Generator produces identifiers for sessions, messages and log lines.
type Generator struct {
	strategy Strategy
}

// NewGenerator returns a generator using the given strategy.
func NewGenerator(strategy Strategy) *Generator {
	return &Generator{strategy: strategy}
}

// Default returns the process-wide generator.
func Default() *Generator {
	return defaultGenerator
}

// NewRowID generates an identifier for a persisted agent_messages row.
func NewRowID() string {
	return defaultGenerator.RowID()
}

// NewConversationID generates an identifier for a server-held conversation view.
func NewConversationID() string {
	return defaultGenerator.newIdentifier("conv")
}

// NewLogID generates an identifier used to correlate log lines of one request.
func NewLogID() string {
	return defaultGenerator.newIdentifier("log")
}

// SessionID generates a session identifier.
func (g *Generator) SessionID() string {
	return g.newIdentifier("session")
}

// MessageID generates a message identifier.
func (g *Generator) MessageID() string {
	return g.newIdentifier("msg")
}

// RowID generates a persisted row identifier.
func (g *Generator) RowID() string {
	return g.newIdentifier("row")
}

func (g *Generator) newIdentifier(prefix string) string {
	var body string
	switch g.strategy {
	case StrategyUUIDv7:
		uuidv7, err := uuid.NewV7()
		if err == nil {
			body = uuidv7.String()
			break
		}
		fallthrough
	case StrategyKSUID:
		body = ksuid.New().String()
	default:
		body = ksuid.New().String()
	}

	return fmt.Sprintf("%s-%s", prefix, body)
}
