package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/provider"
	"github.com/ccs-cli/ccs/internal/session"
	"github.com/ccs-cli/ccs/internal/variant"
)

func newCLIProxyCmd() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "cliproxy",
		Short: "Manage CLIProxy variants and their running proxy processes",
	}
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "CLIProxy backend (\"original\" or \"plus\"); defaults to the configured backend")

	cmd.AddCommand(
		newCLIProxyCreateCmd(&backend),
		newCLIProxyEditCmd(),
		newCLIProxyRemoveCmd(),
		newCLIProxyListCmd(),
		newCLIProxyStartCmd(),
		newCLIProxyStopCmd(),
		newCLIProxyRestartCmd(),
		newCLIProxyStatusCmd(),
		newCLIProxyDefaultCmd(),
		newCLIProxyCatalogCmd(),
		newCLIProxyPassthroughCmd("sync", "re-synchronize CLIProxy's upstream OAuth/account state"),
		newCLIProxyPassthroughCmd("quota", "print CLIProxy's current usage/quota report"),
		newCLIProxyPassthroughCmd("pause", "pause CLIProxy's acceptance of new requests"),
		newCLIProxyPassthroughCmd("resume", "resume CLIProxy's acceptance of new requests"),
	)
	return cmd
}

// resolvedBackend defaults an empty --backend flag to the configured
// unified-store backend, falling back to "original" in legacy mode.
func resolvedBackend(a *app, flag string) string {
	if flag != "" {
		return flag
	}
	store, err := a.unifiedStore()
	if err != nil {
		return "original"
	}
	return store.GetCLIProxyBackend()
}

func newCLIProxyCreateCmd(backend *string) *cobra.Command {
	var provID, model, account, target string
	var composite bool
	var defaultTier string
	var tierFlags []string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a single-provider or composite CLIProxy variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			name := args[0]

			if composite {
				tiers, err := parseTierFlags(tierFlags)
				if err != nil {
					return err
				}
				rec, err := a.variant.CreateCompositeVariant(variant.CreateCompositeInput{
					Name: name, DefaultTier: defaultTier, Tiers: tiers, Target: target,
				})
				if err != nil {
					return err
				}
				fmt.Printf("created composite variant %q (port=%d default=%s)\n", name, rec.Port, rec.DefaultTier)
				return nil
			}

			rec, err := a.variant.CreateSingleVariant(variant.CreateSingleInput{
				Name:     name,
				Provider: provID,
				Model:    model,
				Account:  account,
				Target:   target,
				Backend:  resolvedBackend(a, *backend),
			})
			if err != nil {
				return err
			}
			fmt.Printf("created variant %q (provider=%s port=%d)\n", name, rec.Provider, rec.Port)
			return nil
		},
	}
	cmd.Flags().StringVar(&provID, "provider", "", "upstream provider id (single-provider variants)")
	cmd.Flags().StringVar(&model, "model", "", "model identifier (single-provider variants)")
	cmd.Flags().StringVar(&account, "account", "", "upstream OAuth account id/nickname")
	cmd.Flags().StringVar(&target, "target", "", "child CLI (claude or droid)")
	cmd.Flags().BoolVar(&composite, "composite", false, "create a composite (multi-tier) variant instead")
	cmd.Flags().StringVar(&defaultTier, "default-tier", "", "composite default tier (opus, sonnet, or haiku)")
	cmd.Flags().StringArrayVar(&tierFlags, "tier", nil,
		"composite tier spec \"name=provider:model\", repeatable; required once per tier")
	return cmd
}

// parseTierFlags turns repeated --tier name=provider:model flags into
// the map CreateCompositeInput expects.
func parseTierFlags(flags []string) (map[string]configstore.TierSpec, error) {
	out := map[string]configstore.TierSpec{}
	for _, f := range flags {
		name, rest, ok := strings.Cut(f, "=")
		if !ok {
			return nil, ccserr.Validationf("--tier %q must be \"name=provider:model\"", f)
		}
		prov, model, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, ccserr.Validationf("--tier %q must be \"name=provider:model\"", f)
		}
		out[name] = configstore.TierSpec{Provider: prov, Model: model}
	}
	return out, nil
}

func newCLIProxyEditCmd() *cobra.Command {
	var provID, model, account, target, defaultTier string
	var tierFlags []string

	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Update a variant's provider, model, account, target, or (for composites) tiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()

			if len(tierFlags) > 0 || cmd.Flags().Changed("default-tier") {
				tiers, err := parseTierFlags(tierFlags)
				if err != nil {
					return err
				}
				in := variant.UpdateCompositeInput{Tiers: tiers}
				if cmd.Flags().Changed("default-tier") {
					in.DefaultTier = &defaultTier
				}
				if cmd.Flags().Changed("target") {
					in.Target = &target
				}
				rec, err := a.variant.UpdateCompositeVariant(args[0], in)
				if err != nil {
					return err
				}
				fmt.Printf("updated composite variant %q (default=%s)\n", args[0], rec.DefaultTier)
				return nil
			}

			in := variant.UpdateSingleInput{}
			if cmd.Flags().Changed("provider") {
				in.Provider = &provID
			}
			if cmd.Flags().Changed("model") {
				in.Model = &model
			}
			if cmd.Flags().Changed("account") {
				in.Account = &account
			}
			if cmd.Flags().Changed("target") {
				in.Target = &target
			}
			rec, err := a.variant.UpdateSingleVariant(args[0], in)
			if err != nil {
				return err
			}
			fmt.Printf("updated variant %q (provider=%s model=%s)\n", args[0], rec.Provider, rec.Model)
			return nil
		},
	}
	cmd.Flags().StringVar(&provID, "provider", "", "upstream provider id (single-provider variants)")
	cmd.Flags().StringVar(&model, "model", "", "model identifier (single-provider variants)")
	cmd.Flags().StringVar(&account, "account", "", "upstream OAuth account id/nickname")
	cmd.Flags().StringVar(&target, "target", "", "child CLI (claude or droid)")
	cmd.Flags().StringVar(&defaultTier, "default-tier", "", "composite default tier (opus, sonnet, or haiku)")
	cmd.Flags().StringArrayVar(&tierFlags, "tier", nil,
		"composite tier spec \"name=provider:model\", repeatable; partial tiers are merged into the existing set")
	return cmd
}

func newCLIProxyRemoveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a variant, freeing its port and settings file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(fmt.Sprintf("remove variant %q?", args[0])) {
				fmt.Println("aborted")
				return nil
			}
			a := newApp()
			if _, err := a.variant.RemoveVariant(args[0]); err != nil {
				return err
			}
			fmt.Printf("removed variant %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newCLIProxyListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List single and composite CLIProxy variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			entries, err := a.variant.ListVariants()
			if err != nil {
				return err
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			for _, e := range entries {
				if e.Type == configstore.KindCompositeVariant {
					fmt.Printf("%-24s composite  port=%-5d default=%s\n", e.Name, e.Port, e.DefaultTier)
				} else {
					fmt.Printf("%-24s variant    port=%-5d\n", e.Name, e.Port)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

func newCLIProxyStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start the CLIProxy process backing a variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			rec, err := a.reg.GetVariant(args[0])
			if err != nil {
				return err
			}
			port := variantPort(rec)
			settings := variantSettings(rec)
			status, err := session.GetProxyStatus(port)
			if err != nil {
				return err
			}
			if status.Running {
				fmt.Printf("already running on port %d (pid %d)\n", port, status.PID)
				return nil
			}
			backend := resolvedBackend(a, "")
			pid, err := session.SpawnProxy(port, backend, settings)
			if err != nil {
				return err
			}
			fmt.Printf("started on port %d (pid %d)\n", port, pid)
			return nil
		},
	}
}

func newCLIProxyStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop the CLIProxy process backing a variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			rec, err := a.reg.GetVariant(args[0])
			if err != nil {
				return err
			}
			result, err := session.StopProxy(variantPort(rec))
			if err != nil {
				return err
			}
			if result.Error != "" {
				return ccserr.Externalf(nil, "stop failed: %s", result.Error)
			}
			fmt.Printf("stopped (was serving %d session(s))\n", result.SessionCount)
			return nil
		},
	}
}

func newCLIProxyRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <name>",
		Short: "Stop and then start the CLIProxy process backing a variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			rec, err := a.reg.GetVariant(args[0])
			if err != nil {
				return err
			}
			port := variantPort(rec)
			if _, err := session.StopProxy(port); err != nil {
				return err
			}
			backend := resolvedBackend(a, "")
			pid, err := session.SpawnProxy(port, backend, variantSettings(rec))
			if err != nil {
				return err
			}
			fmt.Printf("restarted on port %d (pid %d)\n", port, pid)
			return nil
		},
	}
}

func newCLIProxyStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show proxy status for one variant, or every variant if name is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			if len(args) == 1 {
				return printVariantStatus(a, args[0])
			}
			entries, err := a.variant.ListVariants()
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err := printVariantStatus(a, e.Name); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", e.Name, err)
				}
			}
			return nil
		},
	}
	return cmd
}

func printVariantStatus(a *app, name string) error {
	rec, err := a.reg.GetVariant(name)
	if err != nil {
		return err
	}
	port := variantPort(rec)
	status, err := session.GetProxyStatus(port)
	if err != nil {
		return err
	}
	if !status.Running {
		fmt.Printf("%-24s stopped (port %d)\n", name, port)
		return nil
	}
	fmt.Printf("%-24s running pid=%-7d port=%-5d sessions=%d target=%s\n",
		name, status.PID, port, status.SessionCount, status.Target)

	if composite, ok := rec.(configstore.CompositeVariantRecord); ok {
		if drift, err := detectCompositeDrift(a, composite); err == nil && drift != "" {
			fmt.Printf("%24s  drift: %s\n", "", drift)
		}
	}
	return nil
}

// detectCompositeDrift compares a running composite variant's settings
// file against what regenerating it now would produce, surfacing stale
// core env keys left behind by an out-of-band edit. Grounded on the
// teacher's update-in-place settings regeneration, run here read-only.
func detectCompositeDrift(a *app, rec configstore.CompositeVariantRecord) (string, error) {
	_, env, err := variant.LoadSettings(rec.Settings)
	if err != nil {
		return "", err
	}
	want := provider.CompositeCoreEnv(rec.Port, rec.Tiers[rec.DefaultTier].Model,
		rec.Tiers["opus"].Model, rec.Tiers["sonnet"].Model, rec.Tiers["haiku"].Model, a.variantAPIKey())
	for k, v := range want {
		if env[k] != v {
			return fmt.Sprintf("%s on disk is %q, regeneration would write %q", k, env[k], v), nil
		}
	}
	return "", nil
}

func newCLIProxyDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <name>",
		Short: "Set the default profile to a variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			if err := a.reg.SetDefault(args[0]); err != nil {
				return err
			}
			fmt.Printf("default profile set to %q\n", args[0])
			return nil
		},
	}
}

func newCLIProxyCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the bundled provider catalog CCS routes through",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(configstore.SupportedProviders))
			for id := range configstore.SupportedProviders {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				info, _ := provider.Lookup(id)
				plusOnly := ""
				if info.PlusOnly {
					plusOnly = " (plus backend only)"
				}
				fmt.Printf("%-10s thinking=%-14s%s\n", id, info.ThinkingStyle, plusOnly)
			}
			return nil
		},
	}
}

// newCLIProxyPassthroughCmd wraps a cliproxy-native operation CCS does
// not reimplement: it forwards straight to the external cliproxy
// binary, scoped to the named variant's port.
func newCLIProxyPassthroughCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			rec, err := a.reg.GetVariant(args[0])
			if err != nil {
				return err
			}
			path, err := exec.LookPath("cliproxy")
			if err != nil {
				return ccserr.Externalf(err, "cliproxy is not installed or not on PATH").
					WithHint("install cliproxy and make sure it is on your PATH")
			}
			c := exec.Command(path, verb, "--port", fmt.Sprintf("%d", variantPort(rec)))
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			c.Stdin = os.Stdin
			if err := c.Run(); err != nil {
				return ccserr.Externalf(err, "cliproxy %s failed", verb)
			}
			return nil
		},
	}
}

func variantPort(rec configstore.ProfileRecord) int {
	switch v := rec.(type) {
	case configstore.SingleVariantRecord:
		return v.Port
	case configstore.CompositeVariantRecord:
		return v.Port
	default:
		return 0
	}
}

func variantSettings(rec configstore.ProfileRecord) string {
	switch v := rec.(type) {
	case configstore.SingleVariantRecord:
		return v.Settings
	case configstore.CompositeVariantRecord:
		return v.Settings
	default:
		return ""
	}
}
