package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/configstore"
)

// newMigrateCmd moves every legacy profiles.json entry into config.yaml
// and flips the installation to unified mode. Composite variants and
// the thinking/global_env sections only exist in unified mode, so this
// is the one-time step that unlocks them for a legacy install.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move legacy profiles.json entries into config.yaml and switch to unified mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configstore.ResolveMode() == configstore.ModeUnified {
				fmt.Println("already running in unified mode; nothing to migrate")
				return nil
			}

			legacy := configstore.NewLegacyStore()
			file, err := legacy.Load()
			if err != nil {
				return err
			}

			unified := configstore.NewUnifiedStore()
			if err := unified.Load(); err != nil {
				return err
			}

			moved := 0
			for name, raw := range file.Profiles {
				rec, err := configstore.DecodeRecord(raw)
				if err != nil {
					return ccserr.IOf(err, "decode legacy profile %q", name)
				}
				switch v := rec.(type) {
				case configstore.AccountRecord:
					if err := unified.SetAccount(name, v); err != nil {
						return err
					}
				case configstore.SingleVariantRecord, configstore.CompositeVariantRecord:
					if err := unified.SetVariant(name, v); err != nil {
						return err
					}
				default:
					continue
				}
				moved++
			}

			if def, ok, err := legacy.GetDefault(); err == nil && ok {
				if _, has := unified.GetDefault(); !has {
					unified.SetDefault(def)
				}
			}

			if err := unified.Save(); err != nil {
				return err
			}

			fmt.Printf("migrated %d profile(s) into %s\n", moved, configstore.ConfigPath())
			fmt.Println("set CCS_UNIFIED=1 (or keep config.yaml in place) to stay in unified mode")
			return nil
		},
	}
}
