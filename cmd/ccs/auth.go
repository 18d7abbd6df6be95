package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/instance"
	"github.com/ccs-cli/ccs/internal/registry"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage isolated-login account profiles",
	}
	cmd.AddCommand(
		newAuthCreateCmd(),
		newAuthListCmd(),
		newAuthShowCmd(),
		newAuthRemoveCmd(),
		newAuthDefaultCmd(),
		newAuthResetDefaultCmd(),
	)
	return cmd
}

func newAuthCreateCmd() *cobra.Command {
	var force, shareContext, deeperContinuity bool
	var contextGroup string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new isolated-login account profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a := newApp()

			meta := registry.AccountMeta{ContextMode: configstore.ContextIsolated}
			if shareContext {
				meta.ContextMode = configstore.ContextShared
				meta.ContextGroup = contextGroup
				if deeperContinuity {
					meta.ContinuityMode = configstore.ContinuityDeeper
				}
			}

			if force {
				if exists, _ := a.reg.HasAccount(name); exists {
					if err := a.reg.RemoveAccount(name); err != nil {
						return err
					}
				}
			}

			if err := a.reg.CreateAccount(name, meta); err != nil {
				return err
			}
			fmt.Printf("created account profile %q\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing profile of the same name")
	cmd.Flags().BoolVar(&shareContext, "share-context", false, "share workspace context with other accounts in the same group")
	cmd.Flags().StringVar(&contextGroup, "context-group", "", "context group name (requires --share-context)")
	cmd.Flags().BoolVar(&deeperContinuity, "deeper-continuity", false, "propagate deeper project-state files into the shared group")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	var asJSON, verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List account profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			merged, err := a.reg.GetAllProfilesMerged()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(merged))
			accounts := map[string]configstore.AccountRecord{}
			for name, rec := range merged {
				if acc, ok := rec.(configstore.AccountRecord); ok {
					accounts[name] = acc
					names = append(names, name)
				}
			}
			sort.Strings(names)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(accounts)
			}

			def, _, _ := a.reg.GetDefaultResolved()
			for _, name := range names {
				acc := accounts[name]
				marker := " "
				if name == def {
					marker = "*"
				}
				if verbose {
					fmt.Printf("%s %-24s context=%s group=%s created=%s\n",
						marker, name, acc.ContextMode, acc.ContextGroup, acc.Created)
				} else {
					fmt.Printf("%s %s\n", marker, name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "include context and timestamp fields")
	return cmd
}

func newAuthShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one account profile's stored fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			acc, err := a.reg.GetAccount(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(acc)
		},
	}
}

func newAuthRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an account profile and its instance directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			a := newApp()

			acc, err := a.reg.GetAccount(name)
			if err != nil {
				return err
			}
			if !yes {
				if !confirm(fmt.Sprintf("remove account profile %q?", name)) {
					fmt.Println("aborted")
					return nil
				}
			}

			if err := a.reg.RemoveAccount(name); err != nil {
				return err
			}
			policy := instance.Policy{Mode: acc.ContextMode, Group: acc.ContextGroup}
			if policy.Mode == "" {
				policy.Mode = configstore.ContextIsolated
			}
			if err := instance.DeleteInstance(name, policy); err != nil {
				return ccserr.IOf(err, "remove instance directory for %q", name)
			}
			fmt.Printf("removed account profile %q\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newAuthDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <name>",
		Short: "Set the default profile",
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

func newAuthResetDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-default",
		Short: "Clear the default profile pointer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			if err := a.reg.ClearDefault(); err != nil {
				return err
			}
			fmt.Println("default profile cleared")
			return nil
		},
	}
}
