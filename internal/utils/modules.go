package utils

import (
	"strings"

	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

// ParseModules parses module arguments into a module list.
// "name" is a bare module, "name=expose" exposes it under another name.
// Comma-separated arguments yield consecutive modules.
func ParseModules(args []string) []compiler.Module {
	modules := make([]compiler.Module, 0, len(args))

	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			name, expose, found := strings.Cut(part, "=")
			name = strings.TrimSpace(name)
			expose = strings.TrimSpace(expose)

			if !found || expose == "" {
				modules = append(modules, compiler.Named(name))
				continue
			}

			modules = append(modules, compiler.Exposed(name, expose))
		}
	}

	return modules
}
