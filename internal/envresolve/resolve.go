// Package envresolve is the Environment Resolver, component F: the
// total function that produces the env var map a CLIProxy-routed
// child process runs with.
package envresolve

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/provider"
)

// RemoteRewrite redirects a resolved base URL at a remote CLIProxy
// instead of the local loopback one.
type RemoteRewrite struct {
	Host      string
	Port      int
	Protocol  string
	AuthToken string
}

// CompositeArgs supplies the tier map driving model-based routing
// through the proxy root.
type CompositeArgs struct {
	DefaultTier string
	Tiers       map[string]configstore.TierSpec
}

// Input is the Environment Resolver's argument bundle: Resolve is a
// total function of these fields plus the provider's bundled defaults.
type Input struct {
	Provider           string
	Port               int
	CustomSettingsPath string
	RemoteRewrite      *RemoteRewrite
	Composite          *CompositeArgs
	ThinkingOverride   string
	APIKey             string
	AntigravityRouting bool
	GlobalEnv          configstore.GlobalEnv
	ThinkingConfig     configstore.ThinkingConfig

	// ReadSettingsFile and PersistSettingsFile let tests substitute an
	// in-memory settings source; nil uses the real filesystem via
	// internal/configstore.
	ReadSettingsFile    func(path string) (map[string]string, bool)
	PersistSettingsFile func(path string, env map[string]string) error
}

// Warning is a non-fatal diagnostic emitted for an unsupported
// explicit --thinking request.
type Warning struct {
	Message string
}

var modelKeys = []string{
	"ANTHROPIC_MODEL",
	"ANTHROPIC_DEFAULT_OPUS_MODEL",
	"ANTHROPIC_DEFAULT_SONNET_MODEL",
	"ANTHROPIC_DEFAULT_HAIKU_MODEL",
}

// Resolve runs the ten-step precedence pipeline and returns the env
// vars CCS computes explicitly. ComposeEnviron layers them over a
// stripped ambient environment to build the full child env (step 8
// operates on the ambient environment, not on this result).
func Resolve(in Input) (map[string]string, []Warning, error) {
	var warnings []Warning

	// Step 1: global env, lowest precedence.
	env := map[string]string{}
	if in.GlobalEnv.Enabled {
		for k, v := range in.GlobalEnv.Env {
			env[k] = v
		}
	}

	// Step 2: settings file if present and valid, else bundled
	// defaults.
	settingsPath := in.CustomSettingsPath
	if settingsPath == "" {
		settingsPath = defaultSettingsPath(in.Provider)
	}
	settingsEnv, found := in.readSettings(settingsPath)
	if found {
		for k, v := range settingsEnv {
			env[k] = v
		}
	} else {
		for k, v := range provider.CoreEnv(in.Provider, "", in.Port, in.APIKey) {
			if v != "" {
				env[k] = v
			}
		}
	}

	// Step 3: required-vars backfill.
	if env["ANTHROPIC_BASE_URL"] == "" {
		env["ANTHROPIC_BASE_URL"] = provider.DefaultBaseURL(in.Provider, in.Port)
	}
	if env["ANTHROPIC_AUTH_TOKEN"] == "" {
		env["ANTHROPIC_AUTH_TOKEN"] = in.APIKey
	}

	// Step 4: remote rewrite.
	rewrote := false
	if in.RemoteRewrite != nil && isLocalBaseURL(env["ANTHROPIC_BASE_URL"]) {
		env["ANTHROPIC_BASE_URL"] = remoteBaseURL(*in.RemoteRewrite, in.Provider, in.Composite != nil)
		if in.RemoteRewrite.AuthToken != "" {
			env["ANTHROPIC_AUTH_TOKEN"] = in.RemoteRewrite.AuthToken
		}
		rewrote = true
	}

	// Step 5: composite special case — proxy root URL, per-tier models.
	if in.Composite != nil {
		if !rewrote {
			env["ANTHROPIC_BASE_URL"] = fmt.Sprintf("http://127.0.0.1:%d", in.Port)
		}
		env["ANTHROPIC_MODEL"] = in.Composite.Tiers[in.Composite.DefaultTier].Model
		env["ANTHROPIC_DEFAULT_OPUS_MODEL"] = in.Composite.Tiers["opus"].Model
		env["ANTHROPIC_DEFAULT_SONNET_MODEL"] = in.Composite.Tiers["sonnet"].Model
		env["ANTHROPIC_DEFAULT_HAIKU_MODEL"] = in.Composite.Tiers["haiku"].Model
	}

	// Step 6: model-ID normalization.
	for _, k := range modelKeys {
		if env[k] != "" {
			env[k] = NormalizeModelID(env[k], in.AntigravityRouting)
		}
	}

	// Step 7: thinking suffix.
	info, _ := provider.Lookup(in.Provider)
	for _, k := range modelKeys {
		if env[k] == "" {
			continue
		}
		tier := tierForKey(k, env[k])
		compositeOverride := ""
		if in.Composite != nil {
			compositeOverride = in.Composite.Tiers[tier].Thinking
		}
		value := ResolveThinkingValue(in.ThinkingOverride, compositeOverride, in.ThinkingConfig, tier, in.Provider)
		if value == "" {
			continue
		}
		next, ok, err := ApplyThinkingSuffix(env[k], value, info.ThinkingStyle)
		if err != nil {
			warnings = append(warnings, Warning{Message: err.Error()})
			continue
		}
		if !ok && in.ThinkingOverride != "" {
			warnings = append(warnings, Warning{Message: fmt.Sprintf(
				"provider %q does not support thinking suffixes; ignoring --thinking for %s", in.Provider, k)})
		}
		env[k] = next
	}

	// Step 9: deprecated-name migration, best effort — never blocks.
	migrated := false
	for _, k := range modelKeys {
		if strings.HasPrefix(env[k], "gemini-claude-") {
			env[k] = "claude-" + strings.TrimPrefix(env[k], "gemini-claude-")
			migrated = true
		}
	}
	if migrated && found {
		_ = in.persistSettings(settingsPath, env)
	}

	// Step 10: return the merged env.
	return env, warnings, nil
}

func tierForKey(key, modelValue string) string {
	switch key {
	case "ANTHROPIC_DEFAULT_OPUS_MODEL":
		return "opus"
	case "ANTHROPIC_DEFAULT_HAIKU_MODEL":
		return "haiku"
	case "ANTHROPIC_DEFAULT_SONNET_MODEL":
		return "sonnet"
	default:
		return DetectTier(modelValue)
	}
}

func defaultSettingsPath(providerID string) string {
	return filepath.Join(configstore.Root(), providerID+".settings.json")
}

func (in Input) readSettings(path string) (map[string]string, bool) {
	if in.ReadSettingsFile != nil {
		return in.ReadSettingsFile(path)
	}
	data, exists, err := configstore.ReadFileOrEmpty(path)
	if err != nil || !exists {
		return nil, false
	}
	var doc struct {
		Env map[string]string `json:"env"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.Env == nil {
		return nil, false
	}
	return doc.Env, true
}

func (in Input) persistSettings(path string, env map[string]string) error {
	if in.PersistSettingsFile != nil {
		return in.PersistSettingsFile(path, env)
	}
	top, _, err := loadTop(path)
	if err != nil {
		return err
	}
	envData, err := json.Marshal(env)
	if err != nil {
		return err
	}
	top["env"] = envData
	data, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return configstore.WriteFileAtomic(path, data, 0o600)
}

func loadTop(path string) (map[string]json.RawMessage, bool, error) {
	data, exists, err := configstore.ReadFileOrEmpty(path)
	if err != nil {
		return nil, false, err
	}
	top := map[string]json.RawMessage{}
	if !exists {
		return top, false, nil
	}
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, false, err
	}
	return top, true, nil
}

func isLocalBaseURL(base string) bool {
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "127.0.0.1" || host == "localhost" || host == "0.0.0.0"
}

func remoteBaseURL(rw RemoteRewrite, providerID string, composite bool) string {
	protocol := strings.ToLower(rw.Protocol)
	if protocol == "" {
		protocol = "http"
	}
	port := rw.Port
	if port == 0 {
		if protocol == "https" {
			port = 443
		} else {
			port = 80
		}
	}
	hostPort := rw.Host
	if !isStandardPort(protocol, port) {
		hostPort = fmt.Sprintf("%s:%d", rw.Host, port)
	}
	if composite {
		return fmt.Sprintf("%s://%s", protocol, hostPort)
	}
	return fmt.Sprintf("%s://%s/api/provider/%s", protocol, hostPort, providerID)
}

func isStandardPort(protocol string, port int) bool {
	return (protocol == "http" && port == 80) || (protocol == "https" && port == 443)
}
