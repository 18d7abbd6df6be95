package variant

import (
	"encoding/json"
	"fmt"

	"github.com/ccs-cli/ccs/internal/configstore"
)

// coreEnvKeys are the six keys a settings-file regeneration rewrites;
// every other key in the file's env map, and every other top-level
// field, survives verbatim.
var coreEnvKeys = []string{
	"ANTHROPIC_BASE_URL",
	"ANTHROPIC_AUTH_TOKEN",
	"ANTHROPIC_MODEL",
	"ANTHROPIC_DEFAULT_OPUS_MODEL",
	"ANTHROPIC_DEFAULT_SONNET_MODEL",
	"ANTHROPIC_DEFAULT_HAIKU_MODEL",
}

// LoadSettings reads path into its raw top-level fields plus a decoded
// env map, or returns empty structures if the file does not exist yet.
func LoadSettings(path string) (top map[string]json.RawMessage, env map[string]string, err error) {
	data, exists, err := configstore.ReadFileOrEmpty(path)
	if err != nil {
		return nil, nil, err
	}
	top = map[string]json.RawMessage{}
	env = map[string]string{}
	if !exists {
		return top, env, nil
	}
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("variant: parse settings %s: %w", path, err)
	}
	if raw, ok := top["env"]; ok {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, nil, fmt.Errorf("variant: parse settings env %s: %w", path, err)
		}
	}
	return top, env, nil
}

// WriteSettings rewrites path atomically. env holds the settings
// file's current env map (including any keys outside coreEnvKeys,
// which are preserved); core supplies this write's values for the six
// core keys, overwriting them while leaving every other key in env,
// and every other top-level field in top, untouched.
func WriteSettings(path string, top map[string]json.RawMessage, env, core map[string]string) error {
	if top == nil {
		top = map[string]json.RawMessage{}
	}
	merged := make(map[string]string, len(env)+len(core))
	for k, v := range env {
		merged[k] = v
	}
	for k, v := range core {
		merged[k] = v
	}

	envData, err := json.Marshal(merged)
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
