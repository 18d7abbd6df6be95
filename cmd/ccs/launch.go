package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/claudecode"
	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/envresolve"
	"github.com/ccs-cli/ccs/internal/instance"
	"github.com/ccs-cli/ccs/internal/logging"
	"github.com/ccs-cli/ccs/internal/session"
)

func osEnviron() []string {
	return os.Environ()
}

// runLaunch implements the default `ccs <name> [args...]` invocation:
// resolve the profile, ensure whatever backing proxy it needs is
// running, build its environment, and hand control to the child CLI.
func runLaunch(name string, childArgs []string, targetOverride string) error {
	a := newApp()

	merged, err := a.reg.GetAllProfilesMerged()
	if err != nil {
		return err
	}
	rec, ok := merged[name]
	if !ok {
		return notFoundErr(a, name, merged)
	}

	switch v := rec.(type) {
	case configstore.AccountRecord:
		return launchAccount(a, name, v, childArgs, targetOverride)
	case configstore.SingleVariantRecord:
		return launchSingleVariant(a, name, v, childArgs, targetOverride)
	case configstore.CompositeVariantRecord:
		return launchCompositeVariant(a, name, v, childArgs, targetOverride)
	default:
		return ccserr.Validationf("profile %q has an unrecognized kind", name)
	}
}

func notFoundErr(a *app, name string, merged map[string]configstore.ProfileRecord) error {
	// GetAccount/GetVariant both reach the same fuzzy-suggestion path as
	// GetAllProfilesMerged's caller; reuse GetAccount purely for its
	// "did you mean" error, discarding the account-typed zero value.
	_, err := a.reg.GetAccount(name)
	return err
}

func launchAccount(a *app, name string, rec configstore.AccountRecord, childArgs []string, targetOverride string) error {
	policy := instance.Policy{Mode: rec.ContextMode, Group: rec.ContextGroup, ContinuityMode: rec.ContinuityMode}
	if policy.Mode == "" {
		policy.Mode = configstore.ContextIsolated
	}
	workspace, err := instance.EnsureInstance(name, policy)
	if err != nil {
		return err
	}

	target := targetOverride
	if target == "" {
		target = "claude"
	}

	resolved := map[string]string{"CLAUDE_CONFIG_DIR": workspace}
	env := envresolve.ComposeEnviron(resolved, osEnviron(), nil)

	a.reg.TouchAccount(name)

	return claudecode.Launch(claudecode.LaunchOptions{
		Target: target,
		Args:   childArgs,
		Env:    env,
	})
}

func launchSingleVariant(a *app, name string, rec configstore.SingleVariantRecord, childArgs []string, targetOverride string) error {
	store, err := a.unifiedStore()
	var backend string
	if err == nil {
		backend = store.GetCLIProxyBackend()
	}

	target := targetOverride
	if target == "" {
		target = rec.Target
	}
	if target == "" {
		target = "claude"
	}

	sessionID, err := ensureProxyAndRegister(rec.Port, rec.Settings, backend, target)
	if err != nil {
		return err
	}
	defer finishSession(sessionID, rec.Port)

	in := envresolve.Input{
		Provider:           rec.Provider,
		Port:               rec.Port,
		CustomSettingsPath: rec.Settings,
		APIKey:             a.variantAPIKey(),
		GlobalEnv:          a.globalEnv(),
		ThinkingConfig:     a.thinkingConfig(),
	}
	resolved, warnings, err := envresolve.Resolve(in)
	if err != nil {
		return err
	}
	logWarnings(warnings)

	env := envresolve.ComposeEnviron(resolved, osEnviron(), nil)
	return claudecode.Launch(claudecode.LaunchOptions{Target: target, Args: childArgs, Env: env})
}

func launchCompositeVariant(a *app, name string, rec configstore.CompositeVariantRecord, childArgs []string, targetOverride string) error {
	store, err := a.unifiedStore()
	var backend string
	if err == nil {
		backend = store.GetCLIProxyBackend()
	}

	target := targetOverride
	if target == "" {
		target = rec.Target
	}
	if target == "" {
		target = "claude"
	}

	sessionID, err := ensureProxyAndRegister(rec.Port, rec.Settings, backend, target)
	if err != nil {
		return err
	}
	defer finishSession(sessionID, rec.Port)

	in := envresolve.Input{
		Port:               rec.Port,
		CustomSettingsPath: rec.Settings,
		Composite:          &envresolve.CompositeArgs{DefaultTier: rec.DefaultTier, Tiers: rec.Tiers},
		APIKey:             a.variantAPIKey(),
		GlobalEnv:          a.globalEnv(),
		ThinkingConfig:     a.thinkingConfig(),
	}
	resolved, warnings, err := envresolve.Resolve(in)
	if err != nil {
		return err
	}
	logWarnings(warnings)

	env := envresolve.ComposeEnviron(resolved, osEnviron(), nil)
	return claudecode.Launch(claudecode.LaunchOptions{Target: target, Args: childArgs, Env: env})
}

// ensureProxyAndRegister queries the port,
// spawn a proxy if none is running, and register this invocation as a
// session on it either way.
func ensureProxyAndRegister(port int, settingsPath, backend, target string) (string, error) {
	status, err := session.GetProxyStatus(port)
	if err != nil {
		return "", err
	}

	pid := status.PID
	version := status.Version
	if !status.Running {
		pid, err = session.SpawnProxy(port, backend, settingsPath)
		if err != nil {
			return "", err
		}
		version = cliproxyVersion()
	}

	return session.RegisterSession(port, pid, version, backend, target)
}

// finishSession unregisters a session and, if it was the last one on
// the port, stops the proxy. Errors here are logged, not propagated:
// the child CLI has already run to completion and its exit status is
// what the caller cares about.
func finishSession(sessionID string, port int) {
	last, err := session.UnregisterSession(sessionID, port)
	if err != nil {
		logging.LogDebugMessage("unregister session %s on port %d: %v", sessionID, port, err)
		return
	}
	if !last {
		return
	}
	if _, err := session.StopProxy(port); err != nil {
		logging.LogDebugMessage("stop proxy on port %d: %v", port, err)
	}
}

func cliproxyVersion() string {
	path, err := exec.LookPath("cliproxy")
	if err != nil {
		return ""
	}
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func logWarnings(warnings []envresolve.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "ccs: warning: %s\n", w.Message)
		logging.LogDebugMessage("%s", w.Message)
	}
}

func (a *app) variantAPIKey() string {
	store, err := a.unifiedStore()
	if err != nil {
		return ""
	}
	return store.GetCLIProxyAPIKey()
}

func (a *app) globalEnv() configstore.GlobalEnv {
	store, err := a.unifiedStore()
	if err != nil {
		return configstore.GlobalEnv{}
	}
	return store.GetGlobalEnv()
}

func (a *app) thinkingConfig() configstore.ThinkingConfig {
	store, err := a.unifiedStore()
	if err != nil {
		return configstore.ThinkingConfig{Mode: "auto"}
	}
	return store.GetThinkingConfig()
}
