// Package infer runs the forward typed-dataflow pass over a method's CFG,
// annotating every variable use with a type and emitting diagnostics.
package infer

import (
	"github.com/viant/strictly/cfg"
	"github.com/viant/strictly/core"
)

// Environment maps SSA locals to their type at one program point.
type Environment map[cfg.LocalRef]core.Type

func (e Environment) clone() Environment {
	out := make(Environment, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// joinInto merges other into e per-local; locals missing on one side keep
// the present side's type (the CFG inserts explicit nil assignments for
// conditionally-defined names, so a one-sided local is a temp). Reports
// whether e changed.
func (e Environment) joinInto(gs *core.GlobalState, other Environment) bool {
	changed := false
	for local, t := range other {
		existing, ok := e[local]
		if !ok {
			e[local] = t
			changed = true
			continue
		}
		joined := core.Join(gs, existing, t)
		if !core.TypeEqual(joined, existing) {
			e[local] = joined
			changed = true
		}
	}
	return changed
}

func (e Environment) equal(other Environment) bool {
	if len(e) != len(other) {
		return false
	}
	for k, v := range e {
		o, ok := other[k]
		if !ok || !core.TypeEqual(v, o) {
			return false
		}
	}
	return true
}

// typeOf reads a local, widening unknown locals to untyped.
func (e Environment) typeOf(local cfg.LocalRef) core.Type {
	if t, ok := e[local]; ok {
		return t
	}
	return core.Untyped
}
