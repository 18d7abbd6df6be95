package configstore

import "encoding/json"

// Kind discriminates the three ProfileRecord implementations. Dynamic
// structural typing ("is there a provider key?") never appears past
// this boundary — every record that has been through the Config Store
// carries an explicit Kind.
type Kind string

const (
	KindAccount          Kind = "account"
	KindSingleVariant    Kind = "variant"
	KindCompositeVariant Kind = "composite"
)

// ProfileRecord is implemented by AccountRecord, SingleVariantRecord,
// and CompositeVariantRecord — the three entities a profile name can
// resolve to.
type ProfileRecord interface {
	Kind() Kind
}

// ContextMode is an account's workspace-isolation policy.
type ContextMode string

const (
	ContextIsolated ContextMode = "isolated"
	ContextShared   ContextMode = "shared"
)

// ContinuityMode controls whether "deeper" project-state files are
// propagated into a shared instance directory.
type ContinuityMode string

const (
	ContinuityStandard ContinuityMode = "standard"
	ContinuityDeeper   ContinuityMode = "deeper"
)

// AccountRecord is an isolated (or grouped) login into the upstream
// Claude CLI.
type AccountRecord struct {
	Created        string         `json:"created" yaml:"created"`
	LastUsed       *string        `json:"last_used" yaml:"last_used"`
	ContextMode    ContextMode    `json:"context_mode,omitempty" yaml:"context_mode,omitempty"`
	ContextGroup   string         `json:"context_group,omitempty" yaml:"context_group,omitempty"`
	ContinuityMode ContinuityMode `json:"continuity_mode,omitempty" yaml:"continuity_mode,omitempty"`
}

func (AccountRecord) Kind() Kind { return KindAccount }

// UnmarshalJSON tolerates a persisted context_group of the wrong JSON
// type (a stray number or object from hand-edited or older config)
// by dropping it to the zero value instead of failing the whole
// record.
func (a *AccountRecord) UnmarshalJSON(data []byte) error {
	type shadow AccountRecord
	aux := struct {
		ContextGroup json.RawMessage `json:"context_group,omitempty"`
		*shadow
	}{shadow: (*shadow)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var group string
	if len(aux.ContextGroup) > 0 {
		_ = json.Unmarshal(aux.ContextGroup, &group)
	}
	a.ContextGroup = group
	return nil
}

// FallbackSpec names a provider/model pair a composite tier falls back
// to; it may not equal its containing tier's own provider/model.
type FallbackSpec struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// TierSpec is one of {opus, sonnet, haiku} within a composite variant.
type TierSpec struct {
	Provider string        `json:"provider" yaml:"provider"`
	Model    string        `json:"model" yaml:"model"`
	Fallback *FallbackSpec `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Thinking string        `json:"thinking,omitempty" yaml:"thinking,omitempty"`
	Account  string        `json:"account,omitempty" yaml:"account,omitempty"`
}

// SingleVariantRecord is a named route into one provider within a
// running CLIProxy.
type SingleVariantRecord struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	Account  string `json:"account,omitempty" yaml:"account,omitempty"`
	Port     int    `json:"port" yaml:"port"`
	Settings string `json:"settings" yaml:"settings"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
}

func (SingleVariantRecord) Kind() Kind { return KindSingleVariant }

// CompositeVariantRecord maps the three Claude tiers to possibly
// different upstream providers/models.
type CompositeVariantRecord struct {
	Type        string              `json:"type" yaml:"type"`
	DefaultTier string              `json:"default_tier" yaml:"default_tier"`
	Tiers       map[string]TierSpec `json:"tiers" yaml:"tiers"`
	Port        int                 `json:"port" yaml:"port"`
	Settings    string              `json:"settings" yaml:"settings"`
	Target      string              `json:"target,omitempty" yaml:"target,omitempty"`
}

func (CompositeVariantRecord) Kind() Kind { return KindCompositeVariant }

// SupportedProviders is the set of providers §3.1 names explicitly.
// "original"-backend CLIProxy installs additionally reject the
// plus-only subset; see internal/provider.
var SupportedProviders = map[string]bool{
	"gemini": true, "codex": true, "agy": true, "qwen": true,
	"iflow": true, "kiro": true, "ghcp": true, "openai": true,
}

// PlusOnlyProviders requires CLIProxy backend "plus"; "original" rejects
// them.
var PlusOnlyProviders = map[string]bool{
	"kiro": true, "ghcp": true,
}
