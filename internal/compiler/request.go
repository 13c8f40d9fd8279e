package compiler

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request identifies what to bundle: a single entry file or an ordered list
// of named modules. Exactly one of Path and Modules is set.
type Request struct {
	Path    string
	Modules []Module
}

// Module is one element of a module list. A nil Options marks a bare name.
type Module struct {
	Name    string
	Options *ModuleOptions
}

// ModuleOptions are the per-module registration options.
type ModuleOptions struct {
	// Expose is the name the module is registered under instead of Name
	Expose string `json:"expose,omitempty"`
}

// FileRequest is a request for a single entry file.
func FileRequest(path string) Request {
	return Request{Path: path}
}

// ModulesRequest is a request for a list of named modules.
func ModulesRequest(modules ...Module) Request {
	return Request{Modules: modules}
}

// Named is a bare module list element.
func Named(name string) Module {
	return Module{Name: name}
}

// Exposed is a module list element registered under expose.
func Exposed(name, expose string) Module {
	return Module{Name: name, Options: &ModuleOptions{Expose: expose}}
}

// IsList reports whether the request is a module list.
func (r Request) IsList() bool {
	return len(r.Modules) > 0
}

// Validate checks that the request names something to bundle.
func (r Request) Validate() error {
	switch {
	case r.Path != "" && r.IsList():
		return fmt.Errorf("%w: both path and modules set", ErrInvalidRequest)
	case r.Path == "" && !r.IsList():
		return fmt.Errorf("%w: no path or modules", ErrInvalidRequest)
	}

	for i, m := range r.Modules {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("%w: module %d has no name", ErrInvalidRequest, i)
		}
	}

	return nil
}

// MarshalJSON encodes the request in its canonical form: a path is a JSON
// string, a module list is a JSON array in request order.
func (r Request) MarshalJSON() ([]byte, error) {
	if r.IsList() {
		return json.Marshal(r.Modules)
	}

	return json.Marshal(r.Path)
}

// MarshalJSON encodes a bare module as its name and a module with options as
// a single-key object {"name": {...}}.
func (m Module) MarshalJSON() ([]byte, error) {
	if m.Options == nil {
		return json.Marshal(m.Name)
	}

	return json.Marshal(map[string]*ModuleOptions{m.Name: m.Options})
}

func (r Request) String() string {
	if r.IsList() {
		names := make([]string, len(r.Modules))
		for i, m := range r.Modules {
			names[i] = m.Name
		}
		return "[" + strings.Join(names, ", ") + "]"
	}

	return r.Path
}
