package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/registry"
	"github.com/ccs-cli/ccs/internal/session"
)

// diagnostic is one doctor finding: a name, a status, a message, and
// an optional fix
// description shown when --fix would apply it.
type diagnostic struct {
	Name    string
	Status  string // "ok", "warning", "error"
	Message string
	fix     func() error
}

func newDoctorCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose drift between stored profiles and on-disk state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			results, err := runDiagnostics(a)
			if err != nil {
				return err
			}

			exitCode := 0
			for _, d := range results {
				fmt.Printf("[%s] %s: %s\n", d.Status, d.Name, d.Message)
				if d.Status != "ok" {
					exitCode = 1
				}
				if apply && d.fix != nil {
					if err := d.fix(); err != nil {
						fmt.Printf("  fix failed: %v\n", err)
						continue
					}
					fmt.Println("  fixed")
				}
			}
			if exitCode != 0 && !apply {
				fmt.Println("\nrun `ccs doctor --fix` to apply automatic fixes where available")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "fix", false, "apply automatic fixes instead of only reporting them")
	return cmd
}

func runDiagnostics(a *app) ([]diagnostic, error) {
	var out []diagnostic

	merged, err := a.reg.GetAllProfilesMerged()
	if err != nil {
		return nil, err
	}

	out = append(out, checkNormalization(a, merged)...)
	out = append(out, checkSettingsFiles(merged)...)
	out = append(out, checkOrphanedLocks(merged)...)

	if len(out) == 0 {
		out = append(out, diagnostic{Name: "profiles", Status: "ok", Message: "no drift detected"})
	}
	return out, nil
}

// checkNormalization re-derives each account's normalized context
// fields and flags any that differ from what is stored, offering a
// fix that rewrites the record through the same normalization path a
// create/update would take.
func checkNormalization(a *app, merged map[string]configstore.ProfileRecord) []diagnostic {
	var out []diagnostic
	for name, rec := range merged {
		acc, ok := rec.(configstore.AccountRecord)
		if !ok {
			continue
		}
		normalized := registry.Normalize(acc)
		if normalized == acc {
			continue
		}
		out = append(out, diagnostic{
			Name:    fmt.Sprintf("normalization:%s", name),
			Status:  "warning",
			Message: fmt.Sprintf("stored context fields for %q do not match their normalized form", name),
			fix: func() error {
				return a.reg.UpdateAccount(name, registry.AccountMeta{
					ContextMode:    normalized.ContextMode,
					ContextGroup:   normalized.ContextGroup,
					ContinuityMode: normalized.ContinuityMode,
				})
			},
		})
	}
	return out
}

// checkSettingsFiles flags variants whose settings file is missing,
// which would otherwise surface later as a confusing bundled-defaults
// fallback at launch time instead of an explicit diagnostic now.
func checkSettingsFiles(merged map[string]configstore.ProfileRecord) []diagnostic {
	var out []diagnostic
	for name, rec := range merged {
		settings := variantSettings(rec)
		if settings == "" {
			continue
		}
		if _, err := os.Stat(settings); err != nil {
			out = append(out, diagnostic{
				Name:    fmt.Sprintf("settings:%s", name),
				Status:  "error",
				Message: fmt.Sprintf("variant %q's settings file %s is missing", name, settings),
			})
		}
	}
	return out
}

// checkOrphanedLocks flags session locks whose PID is dead, offering
// CleanupOrphanedSessions as the fix — the same cleanup the Session
// Manager runs opportunistically on its own operations.
func checkOrphanedLocks(merged map[string]configstore.ProfileRecord) []diagnostic {
	var out []diagnostic
	seen := map[int]bool{}
	for name, rec := range merged {
		port := variantPort(rec)
		if port == 0 || seen[port] {
			continue
		}
		seen[port] = true

		status, err := session.GetProxyStatus(port)
		if err != nil || !statusHasLock(status) {
			continue
		}
		if status.Running {
			continue
		}
		out = append(out, diagnostic{
			Name:    fmt.Sprintf("orphaned-lock:%s", name),
			Status:  "warning",
			Message: fmt.Sprintf("variant %q's session lock on port %d references a dead process", name, port),
			fix:     func() error { return session.CleanupOrphanedSessions(port) },
		})
	}
	return out
}

func statusHasLock(status session.Status) bool {
	return status.StartedAt != ""
}
