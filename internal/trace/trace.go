// Package trace defines the observability record threaded through a single
// processPrompt run; callers may discard it.
package trace

import (
	"github.com/kittclouds/gomemory/internal/classify"
	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/plan"
)

// Turn is one tool-calling turn from either agent loop.
type Turn struct {
	Pipeline string // "retrieve" or "store"
	ToolCall string
	Arguments string
	Result string
	Reasoning string
	Error string
}

// ReconcileFlag records the reconciler's verdict for one new-vs-old
// instruction pair.
type ReconcileFlag struct {
	NewID string
	OldID string
	Verdict string // NO_CONFLICT, SUPERSEDES, CONTRADICTION
	Detail string
}

// Trace is the full observability record for one processPrompt call.
type Trace struct {
	Prompt string
	Classification classify.Result
	Plan plan.Output
	RetrieveTurns []Turn
	StoreTurns []Turn
	ForceStored []string
	SafetyNets []string
	ReconcileFlags []ReconcileFlag
	Usage map[gateway.ChatTag]gateway.Usage
}

// New builds an empty trace for prompt.
func New(prompt string) *Trace {
	return &Trace{Prompt: prompt}
}
