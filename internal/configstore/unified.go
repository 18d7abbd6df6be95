package configstore

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnifiedStore reads and mutates config.yaml as a yaml.Node AST rather
// than decoding into a fixed Go struct, so sections the core does not
// know about (and keys within sections it only partially touches)
// round-trip byte-for-byte across a Load/Save cycle.
type UnifiedStore struct {
	path string
	doc  *yaml.Node
}

func NewUnifiedStore() *UnifiedStore {
	return &UnifiedStore{path: ConfigPath()}
}

// Load parses config.yaml. A missing file yields an empty document
// ready for first use, matching the Config Store's "absent file reads
// as empty default structure" contract.
func (s *UnifiedStore) Load() error {
	data, exists, err := ReadFileOrEmpty(s.path)
	if err != nil {
		return err
	}
	if !exists {
		s.doc = emptyDocument()
		return nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("configstore: parse %s: %w", s.path, err)
	}
	if len(doc.Content) == 0 {
		s.doc = emptyDocument()
		return nil
	}
	s.doc = &doc
	root := s.doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("configstore: %s root is not a mapping", s.path)
	}
	ensureStringKey(root, "version", "1.0")
	return nil
}

func emptyDocument() *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	ensureStringKey(root, "version", "1.0")
	return doc
}

// Save marshals the AST back to config.yaml atomically.
func (s *UnifiedStore) Save() error {
	if s.doc == nil {
		return fmt.Errorf("configstore: Save called before Load")
	}
	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("configstore: encode %s: %w", s.path, err)
	}
	return WriteFileAtomic(s.path, data, 0o600)
}

func (s *UnifiedStore) root() *yaml.Node {
	return s.doc.Content[0]
}

func findKey(mapping *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i], mapping.Content[i+1]
		}
	}
	return nil, nil
}

func setKey(mapping *yaml.Node, key string, value *yaml.Node) {
	if _, v := findKey(mapping, key); v != nil {
		*v = *value
		return
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	mapping.Content = append(mapping.Content, keyNode, value)
}

func ensureMapping(mapping *yaml.Node, key string) *yaml.Node {
	if _, v := findKey(mapping, key); v != nil {
		if v.Kind != yaml.MappingNode {
			v.Kind = yaml.MappingNode
			v.Tag = "!!map"
			v.Content = nil
		}
		return v
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setKey(mapping, key, child)
	return child
}

func deleteKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
			return true
		}
	}
	return false
}

func ensureStringKey(mapping *yaml.Node, key, value string) {
	if k, _ := findKey(mapping, key); k != nil {
		return
	}
	setKey(mapping, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

// GetAccounts decodes the "accounts" section.
func (s *UnifiedStore) GetAccounts() (map[string]AccountRecord, error) {
	_, v := findKey(s.root(), "accounts")
	out := map[string]AccountRecord{}
	if v == nil {
		return out, nil
	}
	if err := v.Decode(&out); err != nil {
		return nil, fmt.Errorf("configstore: decode accounts: %w", err)
	}
	return out, nil
}

// SetAccount upserts one account by name without disturbing sibling
// accounts or any other top-level section.
func (s *UnifiedStore) SetAccount(name string, rec AccountRecord) error {
	accounts := ensureMapping(s.root(), "accounts")
	node := &yaml.Node{}
	if err := node.Encode(rec); err != nil {
		return fmt.Errorf("configstore: encode account %s: %w", name, err)
	}
	setKey(accounts, name, node)
	return nil
}

// DeleteAccount removes one account by name.
func (s *UnifiedStore) DeleteAccount(name string) {
	_, v := findKey(s.root(), "accounts")
	if v == nil {
		return
	}
	deleteKey(v, name)
}

// GetDefault returns the unified store's default profile name, if set.
func (s *UnifiedStore) GetDefault() (string, bool) {
	_, v := findKey(s.root(), "default")
	if v == nil || v.Tag == "!!null" || v.Value == "" {
		return "", false
	}
	return v.Value, true
}

// SetDefault points the unified default at name.
func (s *UnifiedStore) SetDefault(name string) {
	setKey(s.root(), "default", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name})
}

// ClearDefault nulls out the unified default.
func (s *UnifiedStore) ClearDefault() {
	setKey(s.root(), "default", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"})
}

func (s *UnifiedStore) cliproxyMapping() *yaml.Node {
	return ensureMapping(s.root(), "cliproxy")
}

// GetVariants decodes cliproxy.variants into tagged records keyed by
// name, discriminating single vs composite on the presence of
// "type: composite".
func (s *UnifiedStore) GetVariants() (map[string]ProfileRecord, error) {
	_, cp := findKey(s.root(), "cliproxy")
	out := map[string]ProfileRecord{}
	if cp == nil {
		return out, nil
	}
	_, variants := findKey(cp, "variants")
	if variants == nil {
		return out, nil
	}
	for i := 0; i+1 < len(variants.Content); i += 2 {
		name := variants.Content[i].Value
		rec, err := decodeVariantNode(variants.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("configstore: decode variant %s: %w", name, err)
		}
		out[name] = rec
	}
	return out, nil
}

func decodeVariantNode(val *yaml.Node) (ProfileRecord, error) {
	var env recordEnvelope
	if err := val.Decode(&env); err != nil {
		return nil, err
	}
	if Kind(env.Type) == KindCompositeVariant {
		var r CompositeVariantRecord
		if err := val.Decode(&r); err != nil {
			return nil, err
		}
		return r, nil
	}
	var r SingleVariantRecord
	if err := val.Decode(&r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetVariant upserts one variant by name.
func (s *UnifiedStore) SetVariant(name string, rec ProfileRecord) error {
	variants := ensureMapping(s.cliproxyMapping(), "variants")
	node := &yaml.Node{}
	switch v := rec.(type) {
	case CompositeVariantRecord:
		v.Type = string(KindCompositeVariant)
		if err := node.Encode(v); err != nil {
			return err
		}
	case SingleVariantRecord:
		if err := node.Encode(v); err != nil {
			return err
		}
	default:
		return fmt.Errorf("configstore: %T is not a variant record", rec)
	}
	setKey(variants, name, node)
	return nil
}

// DeleteVariant removes one variant by name.
func (s *UnifiedStore) DeleteVariant(name string) {
	_, cp := findKey(s.root(), "cliproxy")
	if cp == nil {
		return
	}
	_, variants := findKey(cp, "variants")
	if variants == nil {
		return
	}
	deleteKey(variants, name)
}

// GetCLIProxyBackend returns "original" or "plus"; "original" is the
// default when unset.
func (s *UnifiedStore) GetCLIProxyBackend() string {
	_, cp := findKey(s.root(), "cliproxy")
	if cp == nil {
		return "original"
	}
	_, b := findKey(cp, "backend")
	if b == nil || b.Value == "" {
		return "original"
	}
	return b.Value
}

// GetCLIProxyAPIKey reads cliproxy.auth.api_key, the lowest-priority
// source the Environment Resolver backfills ANTHROPIC_AUTH_TOKEN from.
func (s *UnifiedStore) GetCLIProxyAPIKey() string {
	_, cp := findKey(s.root(), "cliproxy")
	if cp == nil {
		return ""
	}
	_, auth := findKey(cp, "auth")
	if auth == nil {
		return ""
	}
	_, key := findKey(auth, "api_key")
	if key == nil {
		return ""
	}
	return key.Value
}

// GetCLIProxyLocalPort reads cliproxy_server.local.port, the default
// port override for the proxy's primary listener.
func (s *UnifiedStore) GetCLIProxyLocalPort() (int, bool) {
	_, srv := findKey(s.root(), "cliproxy_server")
	if srv == nil {
		return 0, false
	}
	_, local := findKey(srv, "local")
	if local == nil {
		return 0, false
	}
	_, port := findKey(local, "port")
	if port == nil {
		return 0, false
	}
	var p int
	if err := port.Decode(&p); err != nil {
		return 0, false
	}
	return p, true
}

// GlobalEnv is the global_env section: an always-merged-lowest set of
// env vars, toggled by Enabled.
type GlobalEnv struct {
	Enabled bool              `yaml:"enabled"`
	Env     map[string]string `yaml:"env"`
}

// GetGlobalEnv returns the global_env section, defaulting to enabled
// with an empty map when absent.
func (s *UnifiedStore) GetGlobalEnv() GlobalEnv {
	_, v := findKey(s.root(), "global_env")
	empty := GlobalEnv{Enabled: true, Env: map[string]string{}}
	if v == nil {
		return empty
	}
	var ge GlobalEnv
	if err := v.Decode(&ge); err != nil {
		return empty
	}
	if ge.Env == nil {
		ge.Env = map[string]string{}
	}
	return ge
}

// ThinkingProviderOverride maps tier name to a thinking level, scoped to
// one provider.
type ThinkingProviderOverride map[string]string

// ThinkingConfig is the "thinking" section driving step 7 of the
// Environment Resolver pipeline.
type ThinkingConfig struct {
	Mode              string                              `yaml:"mode"`
	Override          string                              `yaml:"override,omitempty"`
	TierDefaults      map[string]string                   `yaml:"tier_defaults,omitempty"`
	ProviderOverrides map[string]ThinkingProviderOverride `yaml:"provider_overrides,omitempty"`
}

func defaultThinkingConfig() ThinkingConfig {
	return ThinkingConfig{
		Mode:              "auto",
		TierDefaults:      map[string]string{},
		ProviderOverrides: map[string]ThinkingProviderOverride{},
	}
}

// GetThinkingConfig returns the thinking section, defaulting to auto
// mode with no overrides when absent or malformed.
func (s *UnifiedStore) GetThinkingConfig() ThinkingConfig {
	_, v := findKey(s.root(), "thinking")
	if v == nil {
		return defaultThinkingConfig()
	}
	cfg := defaultThinkingConfig()
	if err := v.Decode(&cfg); err != nil {
		return defaultThinkingConfig()
	}
	if cfg.TierDefaults == nil {
		cfg.TierDefaults = map[string]string{}
	}
	if cfg.ProviderOverrides == nil {
		cfg.ProviderOverrides = map[string]ThinkingProviderOverride{}
	}
	return cfg
}

// SetThinkingConfig replaces the thinking section wholesale.
func (s *UnifiedStore) SetThinkingConfig(cfg ThinkingConfig) error {
	node := &yaml.Node{}
	if err := node.Encode(cfg); err != nil {
		return fmt.Errorf("configstore: encode thinking config: %w", err)
	}
	setKey(s.root(), "thinking", node)
	return nil
}
