package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/configstore"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Edit unified-store configuration sections",
	}
	cmd.AddCommand(newConfigThinkingCmd())
	return cmd
}

func newConfigThinkingCmd() *cobra.Command {
	var mode, override string
	var clearOverride bool
	var tier []string
	var providerOverride []string
	var clearProviderOverride []string

	cmd := &cobra.Command{
		Use:   "thinking",
		Short: "View or edit the global thinking-budget configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			store, err := a.unifiedStore()
			if err != nil {
				return err
			}
			if a.mode != configstore.ModeUnified {
				return ccserr.Validationf("thinking configuration requires unified mode; run `ccs migrate` first")
			}

			cfg := store.GetThinkingConfig()
			changed := false

			if cmd.Flags().Changed("mode") {
				cfg.Mode = mode
				changed = true
			}
			if cmd.Flags().Changed("override") {
				cfg.Override = override
				changed = true
			}
			if clearOverride {
				cfg.Override = ""
				changed = true
			}
			for _, t := range tier {
				name, level, ok := strings.Cut(t, " ")
				if !ok {
					return ccserr.Validationf("--tier %q must be \"tier level\"", t)
				}
				if cfg.TierDefaults == nil {
					cfg.TierDefaults = map[string]string{}
				}
				cfg.TierDefaults[name] = level
				changed = true
			}
			for _, po := range providerOverride {
				provID, tierLevel, ok := strings.Cut(po, " ")
				if !ok {
					return ccserr.Validationf("--provider-override %q must be \"provider tier:level\"", po)
				}
				tierName, level, ok := strings.Cut(tierLevel, ":")
				if !ok {
					return ccserr.Validationf("--provider-override %q must be \"provider tier:level\"", po)
				}
				if cfg.ProviderOverrides == nil {
					cfg.ProviderOverrides = map[string]configstore.ThinkingProviderOverride{}
				}
				if cfg.ProviderOverrides[provID] == nil {
					cfg.ProviderOverrides[provID] = configstore.ThinkingProviderOverride{}
				}
				cfg.ProviderOverrides[provID][tierName] = level
				changed = true
			}
			for _, provID := range clearProviderOverride {
				delete(cfg.ProviderOverrides, provID)
				changed = true
			}

			if !changed {
				printThinkingConfig(cfg)
				return nil
			}

			if err := store.SetThinkingConfig(cfg); err != nil {
				return err
			}
			if err := store.Save(); err != nil {
				return err
			}
			printThinkingConfig(cfg)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "thinking mode (auto or manual)")
	cmd.Flags().StringVar(&override, "override", "", "global thinking override (off, low, medium, high)")
	cmd.Flags().BoolVar(&clearOverride, "clear-override", false, "clear the global thinking override")
	cmd.Flags().StringArrayVar(&tier, "tier", nil, "per-tier default \"tier level\", repeatable")
	cmd.Flags().StringArrayVar(&providerOverride, "provider-override", nil, "per-provider tier override \"provider tier:level\", repeatable")
	cmd.Flags().StringArrayVar(&clearProviderOverride, "clear-provider-override", nil, "remove all overrides for a provider, repeatable")
	return cmd
}

func printThinkingConfig(cfg configstore.ThinkingConfig) {
	fmt.Printf("mode: %s\n", cfg.Mode)
	if cfg.Override != "" {
		fmt.Printf("override: %s\n", cfg.Override)
	}
	for tier, level := range cfg.TierDefaults {
		fmt.Printf("tier_default[%s]: %s\n", tier, level)
	}
	for provID, overrides := range cfg.ProviderOverrides {
		for tier, level := range overrides {
			fmt.Printf("provider_override[%s][%s]: %s\n", provID, tier, level)
		}
	}
}
