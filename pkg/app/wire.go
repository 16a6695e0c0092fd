package app

import (
	"fmt"
	"log/slog"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/provider"
	"github.com/flemzord/tabllm/internal/store"
)

// buildRegistry registers every loaded provider module under the name it
// reports. Must be called after LoadModules and before Start.
func buildRegistry(app *core.App, health provider.HealthConfig, logger *slog.Logger) (*provider.Registry, error) {
	reg := provider.NewRegistry(
		provider.WithLogger(logger.With("component", "provider")),
		provider.WithHealthConfig(health),
	)
	for _, mod := range app.Modules() {
		p, ok := mod.(provider.Provider)
		if !ok {
			continue
		}
		named, ok := mod.(provider.Named)
		if !ok {
			return nil, fmt.Errorf("provider module %s does not report a provider name", mod.ModuleInfo().ID)
		}
		if err := reg.Register(named.ProviderName(), p); err != nil {
			return nil, err
		}
		logger.Info("provider registered", "provider", named.ProviderName(), "module", string(mod.ModuleInfo().ID))
	}
	if len(reg.Names()) == 0 {
		return nil, fmt.Errorf("no provider module loaded")
	}
	return reg, nil
}

// resolveStore returns the repository a store module registered, or an
// in-memory store seeded with the default catalog when none is configured.
func resolveStore(appCtx *core.AppContext, logger *slog.Logger) store.ReadWriter {
	if rw, ok := core.ServiceAs[store.ReadWriter](appCtx, store.ServiceName); ok {
		return rw
	}
	logger.Warn("no store module configured, using an in-memory store; changes are lost on exit")
	mem := store.NewMemory()
	appCtx.RegisterService(store.ServiceName, mem)
	return mem
}
