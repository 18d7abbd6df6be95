package main

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/envresolve"
)

func newEnvCmd() *cobra.Command {
	var format, shell string

	cmd := &cobra.Command{
		Use:   "env <profile>",
		Short: "Print the resolved environment for a profile without launching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			name := args[0]

			merged, err := a.reg.GetAllProfilesMerged()
			if err != nil {
				return err
			}
			rec, ok := merged[name]
			if !ok {
				return notFoundErr(a, name, merged)
			}

			var env map[string]string
			switch v := rec.(type) {
			case configstore.AccountRecord:
				return ccserr.Validationf("%q is an account profile; it has no CLIProxy environment to print", name)
			case configstore.SingleVariantRecord:
				env, err = resolveForPrint(a, envresolve.Input{
					Provider:           v.Provider,
					Port:               v.Port,
					CustomSettingsPath: v.Settings,
				})
			case configstore.CompositeVariantRecord:
				env, err = resolveForPrint(a, envresolve.Input{
					Port:               v.Port,
					CustomSettingsPath: v.Settings,
					Composite:          &envresolve.CompositeArgs{DefaultTier: v.DefaultTier, Tiers: v.Tiers},
				})
			default:
				return ccserr.Validationf("profile %q has an unrecognized kind", name)
			}
			if err != nil {
				return err
			}

			switch format {
			case "", "anthropic", "raw":
				printRawEnv(env, shell)
			case "openai":
				printOpenAIEnv(env, shell)
			default:
				return ccserr.Validationf("unknown --format %q", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "anthropic", "output shape: anthropic, openai, or raw")
	cmd.Flags().StringVar(&shell, "shell", "auto", "export syntax: auto, bash, fish, or powershell")
	return cmd
}

func resolveForPrint(a *app, in envresolve.Input) (map[string]string, error) {
	in.APIKey = a.variantAPIKey()
	in.GlobalEnv = a.globalEnv()
	in.ThinkingConfig = a.thinkingConfig()
	env, warnings, err := envresolve.Resolve(in)
	if err != nil {
		return nil, err
	}
	logWarnings(warnings)
	return env, nil
}

// printRawEnv covers both the "raw" and "anthropic" formats: CCS's own
// env vars are already Anthropic-shaped, so there is nothing further to
// translate for the "anthropic" case.
func printRawEnv(env map[string]string, shell string) {
	keys := sortedKeys(env)
	sh := resolveShell(shell)
	for _, k := range keys {
		printExport(sh, k, env[k])
	}
}

// printOpenAIEnv maps the Anthropic-shaped keys onto their OpenAI-style
// equivalents for tooling that expects that naming.
func printOpenAIEnv(env map[string]string, shell string) {
	sh := resolveShell(shell)
	if v, ok := env["ANTHROPIC_BASE_URL"]; ok {
		printExport(sh, "OPENAI_BASE_URL", v)
	}
	if v, ok := env["ANTHROPIC_AUTH_TOKEN"]; ok {
		printExport(sh, "OPENAI_API_KEY", v)
	}
	if v, ok := env["ANTHROPIC_MODEL"]; ok {
		printExport(sh, "OPENAI_MODEL", v)
	}
	for _, k := range sortedKeys(env) {
		switch k {
		case "ANTHROPIC_BASE_URL", "ANTHROPIC_AUTH_TOKEN", "ANTHROPIC_MODEL":
			continue
		}
		printExport(sh, k, env[k])
	}
}

func sortedKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resolveShell(shell string) string {
	if shell != "" && shell != "auto" {
		return shell
	}
	if runtime.GOOS == "windows" {
		return "powershell"
	}
	return "bash"
}

func printExport(shell, key, value string) {
	switch shell {
	case "fish":
		fmt.Printf("set -gx %s %q\n", key, value)
	case "powershell":
		fmt.Printf("$env:%s = %q\n", key, value)
	default:
		fmt.Printf("export %s=%q\n", key, value)
	}
}
