package main

import (
	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/registry"
	"github.com/ccs-cli/ccs/internal/variant"
)

// app bundles the service-layer handles every subcommand needs. It is
// built fresh per invocation since no core operation retains in-memory
// state across calls.
type app struct {
	mode    configstore.Mode
	reg     *registry.Registry
	variant *variant.Service
}

func newApp() *app {
	mode := configstore.ResolveMode()
	legacy := configstore.NewLegacyStore()
	// Constructed regardless of mode: GetAllProfilesMerged reads an
	// existing config.yaml for display purposes even in legacy mode.
	unified := configstore.NewUnifiedStore()
	reg := registry.New(mode, legacy, unified)
	return &app{mode: mode, reg: reg, variant: variant.New(reg)}
}

func (a *app) unifiedStore() (*configstore.UnifiedStore, error) {
	u := configstore.NewUnifiedStore()
	if err := u.Load(); err != nil {
		return nil, err
	}
	return u, nil
}
