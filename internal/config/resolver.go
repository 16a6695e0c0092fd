package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/tabllm/internal/core"
)

// Resolve returns the configured module IDs in load order: stores first so
// their repository service exists before anything else provisions, then the
// rest sorted by ID.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		sa, sb := core.ModuleID(a).Namespace() == "store", core.ModuleID(b).Namespace() == "store"
		switch {
		case sa && !sb:
			return -1
		case sb && !sa:
			return 1
		}
		return cmp.Compare(a, b)
	})
	return ids
}
