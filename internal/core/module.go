// Package core provides the module system tabllm is assembled from.
package core

import "strings"

// ModuleID is a dotted identifier such as "provider.openai". The part before
// the first dot is the namespace.
type ModuleID string

// Namespace returns the leading segment of the ID ("provider" for
// "provider.openai").
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns everything after the namespace ("openai" for
// "provider.openai"), or the whole ID when it has no dot.
func (id ModuleID) Name() string {
	_, name, ok := strings.Cut(string(id), ".")
	if !ok {
		return string(id)
	}
	return name
}

// Module is implemented by every registrable component.
type Module interface {
	ModuleInfo() ModuleInfo
}

// ModuleInfo describes a module and how to build a fresh instance of it.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}
