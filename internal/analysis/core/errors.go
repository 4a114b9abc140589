package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is the cause of a configuration error raised when a rule
	// reports a finding kind the registry does not declare.
	ErrUnknownKind = errors.New("finding kind is not declared")
	// ErrDuplicateKind is returned when a kind name is declared twice with
	// different definitions.
	ErrDuplicateKind = errors.New("finding kind declared twice")
	// ErrDuplicateRule is returned when two bindings share a rule ID.
	ErrDuplicateRule = errors.New("rule registered twice")
	// ErrInvalidBinding is returned for bindings without a usable rule.
	ErrInvalidBinding = errors.New("invalid rule binding")
)

// RulePanic is the cause recorded when a rule panics while visiting a node.
type RulePanic struct {
	RuleID string
	Value  any
	Stack  []byte
}

func (p *RulePanic) Error() string {
	return fmt.Sprintf("rule %s panicked: %v", p.RuleID, p.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (p *RulePanic) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}
