// Package variant is the Variant Service, component D: transactional
// CRUD for single-provider and composite CLIProxy variants. It
// allocates ports, renders per-variant settings files, and cleans up
// port-keyed proxy artifacts on removal.
package variant

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/provider"
	"github.com/ccs-cli/ccs/internal/registry"
	"github.com/ccs-cli/ccs/internal/session"
)

// Service implements the Variant Service atop a Registry.
type Service struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Service {
	return &Service{reg: reg}
}

var tiers = []string{"opus", "sonnet", "haiku"}

// CreateSingleInput is CreateSingleVariant's argument bundle.
type CreateSingleInput struct {
	Name     string
	Provider string
	Model    string
	Account  string
	Target   string
	// Backend is the CLIProxy backend ("original" or "plus") currently
	// configured, needed to reject plus-only providers.
	Backend string
}

// CreateSingleVariant runs the create-single-provider transaction.
func (s *Service) CreateSingleVariant(in CreateSingleInput) (rec configstore.SingleVariantRecord, err error) {
	var rb rollback
	defer func() {
		if err != nil {
			rb.run()
		}
	}()

	if err = registry.ValidateName(in.Name); err != nil {
		return configstore.SingleVariantRecord{}, err
	}
	if err = s.checkNameFree(in.Name); err != nil {
		return configstore.SingleVariantRecord{}, err
	}
	if !provider.IsSupported(in.Provider) {
		return configstore.SingleVariantRecord{}, ccserr.Validationf("unsupported provider %q", in.Provider)
	}
	if provider.RejectsPlusOnly(in.Provider, in.Backend) {
		return configstore.SingleVariantRecord{}, ccserr.Validationf(
			"provider %q requires the CLIProxy \"plus\" backend", in.Provider)
	}
	if in.Model == "" {
		return configstore.SingleVariantRecord{}, ccserr.Validationf("model is required")
	}

	used, err := s.usedPorts()
	if err != nil {
		return configstore.SingleVariantRecord{}, err
	}
	port, err := AllocatePort(used)
	if err != nil {
		return configstore.SingleVariantRecord{}, err
	}
	rb.add(func() { removePortArtifacts(port) })

	target := in.Target
	if target == "" {
		target = "claude"
	}

	settingsPath := settingsPathFor(in.Provider, in.Name)
	apiKey := s.unifiedAPIKey()
	core := provider.CoreEnv(in.Provider, in.Model, port, apiKey)
	if err = WriteSettings(settingsPath, nil, nil, core); err != nil {
		return configstore.SingleVariantRecord{}, ccserr.IOf(err, "write settings for variant %q", in.Name)
	}
	rb.add(func() { os.Remove(settingsPath) })

	rec = configstore.SingleVariantRecord{
		Provider: in.Provider,
		Model:    in.Model,
		Account:  in.Account,
		Port:     port,
		Settings: settingsPath,
		Target:   target,
	}
	if err = s.reg.SetVariant(in.Name, rec); err != nil {
		return configstore.SingleVariantRecord{}, err
	}
	return rec, nil
}

// CreateCompositeInput is CreateCompositeVariant's argument bundle.
type CreateCompositeInput struct {
	Name        string
	DefaultTier string
	Tiers       map[string]configstore.TierSpec
	Target      string
}

// CreateCompositeVariant runs the create-composite transaction.
// Composite variants require unified mode.
func (s *Service) CreateCompositeVariant(in CreateCompositeInput) (rec configstore.CompositeVariantRecord, err error) {
	var rb rollback
	defer func() {
		if err != nil {
			rb.run()
		}
	}()

	if s.reg.Mode() != configstore.ModeUnified {
		return configstore.CompositeVariantRecord{}, ccserr.Validationf(
			"composite variants require unified mode; run `ccs migrate` first")
	}
	if err = registry.ValidateName(in.Name); err != nil {
		return configstore.CompositeVariantRecord{}, err
	}
	if err = s.checkNameFree(in.Name); err != nil {
		return configstore.CompositeVariantRecord{}, err
	}
	if err = validateTiers(in.DefaultTier, in.Tiers, true); err != nil {
		return configstore.CompositeVariantRecord{}, err
	}

	used, err := s.usedPorts()
	if err != nil {
		return configstore.CompositeVariantRecord{}, err
	}
	port, err := AllocatePort(used)
	if err != nil {
		return configstore.CompositeVariantRecord{}, err
	}
	rb.add(func() { removePortArtifacts(port) })

	target := in.Target
	if target == "" {
		target = "claude"
	}

	settingsPath := compositeSettingsPath(in.Name)
	core := provider.CompositeCoreEnv(port, in.Tiers[in.DefaultTier].Model,
		in.Tiers["opus"].Model, in.Tiers["sonnet"].Model, in.Tiers["haiku"].Model, s.unifiedAPIKey())
	if err = WriteSettings(settingsPath, nil, nil, core); err != nil {
		return configstore.CompositeVariantRecord{}, ccserr.IOf(err, "write settings for variant %q", in.Name)
	}
	rb.add(func() { os.Remove(settingsPath) })

	rec = configstore.CompositeVariantRecord{
		Type:        string(configstore.KindCompositeVariant),
		DefaultTier: in.DefaultTier,
		Tiers:       in.Tiers,
		Port:        port,
		Settings:    settingsPath,
		Target:      target,
	}
	if err = s.reg.SetVariant(in.Name, rec); err != nil {
		return configstore.CompositeVariantRecord{}, err
	}
	return rec, nil
}

// UpdateSingleInput carries the optional partial fields of an update;
// a nil pointer means "leave unchanged".
type UpdateSingleInput struct {
	Provider *string
	Model    *string
	Account  *string
	Target   *string
}

// UpdateSingleVariant runs the update-single-provider transaction.
func (s *Service) UpdateSingleVariant(name string, in UpdateSingleInput) (rec configstore.SingleVariantRecord, err error) {
	prior, err := s.reg.GetVariant(name)
	if err != nil {
		return configstore.SingleVariantRecord{}, err
	}
	current, ok := prior.(configstore.SingleVariantRecord)
	if !ok {
		return configstore.SingleVariantRecord{}, ccserr.Validationf(
			"%q is a composite variant; use the composite update operation", name)
	}

	var rb rollback
	rb.add(func() { s.reg.SetVariant(name, current) })
	defer func() {
		if err != nil {
			rb.run()
		}
	}()

	providerChanged := in.Provider != nil && *in.Provider != current.Provider
	if providerChanged && in.Model == nil {
		return configstore.SingleVariantRecord{}, ccserr.Validationf(
			"changing provider requires specifying model explicitly")
	}

	next := current
	if in.Provider != nil {
		if !provider.IsSupported(*in.Provider) {
			return configstore.SingleVariantRecord{}, ccserr.Validationf("unsupported provider %q", *in.Provider)
		}
		next.Provider = *in.Provider
	}
	if in.Model != nil {
		next.Model = *in.Model
	}
	if in.Account != nil {
		next.Account = *in.Account
	}
	if in.Target != nil {
		next.Target = *in.Target
	}

	top, env, err := LoadSettings(next.Settings)
	if err != nil {
		return configstore.SingleVariantRecord{}, err
	}
	apiKey := s.unifiedAPIKey()
	var core map[string]string
	if providerChanged {
		core = provider.CoreEnv(next.Provider, next.Model, next.Port, apiKey)
	} else if in.Model != nil {
		core = map[string]string{
			"ANTHROPIC_MODEL":                next.Model,
			"ANTHROPIC_DEFAULT_OPUS_MODEL":   next.Model,
			"ANTHROPIC_DEFAULT_SONNET_MODEL": next.Model,
			"ANTHROPIC_DEFAULT_HAIKU_MODEL":  next.Model,
		}
	}
	if core != nil {
		if err = WriteSettings(next.Settings, top, env, core); err != nil {
			return configstore.SingleVariantRecord{}, ccserr.IOf(err, "rewrite settings for variant %q", name)
		}
	}

	if err = s.reg.SetVariant(name, next); err != nil {
		return configstore.SingleVariantRecord{}, err
	}
	return next, nil
}

// UpdateCompositeInput carries the optional partial fields of a
// composite update; Tiers may supply any subset of the three tiers,
// each partially, and is deep-merged into the persisted tiers.
type UpdateCompositeInput struct {
	DefaultTier *string
	Tiers       map[string]configstore.TierSpec
	Target      *string
}

// UpdateCompositeVariant runs the update-composite transaction:
// deep-merges partial tiers, revalidates, and regenerates
// the settings file in place.
func (s *Service) UpdateCompositeVariant(name string, in UpdateCompositeInput) (rec configstore.CompositeVariantRecord, err error) {
	prior, err := s.reg.GetVariant(name)
	if err != nil {
		return configstore.CompositeVariantRecord{}, err
	}
	current, ok := prior.(configstore.CompositeVariantRecord)
	if !ok {
		return configstore.CompositeVariantRecord{}, ccserr.Validationf(
			"%q is a single-provider variant; use the single-provider update operation", name)
	}

	var rb rollback
	rb.add(func() { s.reg.SetVariant(name, current) })
	defer func() {
		if err != nil {
			rb.run()
		}
	}()

	next := current
	next.Tiers = mergeTiers(current.Tiers, in.Tiers)
	if in.DefaultTier != nil {
		next.DefaultTier = *in.DefaultTier
	}
	if in.Target != nil {
		next.Target = *in.Target
	}

	if err = validateTiers(next.DefaultTier, next.Tiers, true); err != nil {
		return configstore.CompositeVariantRecord{}, err
	}

	top, env, err := LoadSettings(next.Settings)
	if err != nil {
		return configstore.CompositeVariantRecord{}, err
	}
	core := provider.CompositeCoreEnv(next.Port, next.Tiers[next.DefaultTier].Model,
		next.Tiers["opus"].Model, next.Tiers["sonnet"].Model, next.Tiers["haiku"].Model, s.unifiedAPIKey())
	if err = WriteSettings(next.Settings, top, env, core); err != nil {
		return configstore.CompositeVariantRecord{}, ccserr.IOf(err, "rewrite settings for variant %q", name)
	}

	if err = s.reg.SetVariant(name, next); err != nil {
		return configstore.CompositeVariantRecord{}, err
	}
	return next, nil
}

// mergeTiers deep-merges partial into base, preserving fallback,
// thinking, and account on tiers partial does not mention, and on
// tiers it mentions but only partially overwrites.
func mergeTiers(base, partial map[string]configstore.TierSpec) map[string]configstore.TierSpec {
	out := make(map[string]configstore.TierSpec, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, p := range partial {
		existing, had := out[k]
		if !had {
			out[k] = p
			continue
		}
		if p.Provider != "" {
			existing.Provider = p.Provider
		}
		if p.Model != "" {
			existing.Model = p.Model
		}
		if p.Fallback != nil {
			existing.Fallback = p.Fallback
		}
		if p.Thinking != "" {
			existing.Thinking = p.Thinking
		}
		if p.Account != "" {
			existing.Account = p.Account
		}
		out[k] = existing
	}
	return out
}

// validateTiers enforces the composite tier invariants. requireAll
// is true on create (all three tiers mandatory) and false would allow
// a partial set, but update callers always pass the fully-merged tier
// map, so requireAll is true in both call sites today.
func validateTiers(defaultTier string, tierMap map[string]configstore.TierSpec, requireAll bool) error {
	if defaultTier == "" {
		return ccserr.Validationf("default_tier is required")
	}
	if !isTierName(defaultTier) {
		return ccserr.Validationf("default_tier %q must be one of opus, sonnet, haiku", defaultTier)
	}
	if requireAll {
		for _, t := range tiers {
			if _, ok := tierMap[t]; !ok {
				return ccserr.Validationf("tier %q is required", t)
			}
		}
	}
	if _, ok := tierMap[defaultTier]; !ok {
		return ccserr.Validationf("default_tier %q is not present in tiers", defaultTier)
	}
	for name, t := range tierMap {
		if !isTierName(name) {
			return ccserr.Validationf("unknown tier %q", name)
		}
		if t.Provider == "" {
			return ccserr.Validationf("tier %q: provider is required", name)
		}
		if !provider.IsSupported(t.Provider) {
			return ccserr.Validationf("tier %q: unsupported provider %q", name, t.Provider)
		}
		if t.Model == "" {
			return ccserr.Validationf("tier %q: model is required", name)
		}
		if t.Fallback != nil && t.Fallback.Provider == t.Provider && t.Fallback.Model == t.Model {
			return ccserr.Validationf("tier %q: fallback must differ from its own provider/model", name)
		}
	}
	return nil
}

func isTierName(name string) bool {
	for _, t := range tiers {
		if t == name {
			return true
		}
	}
	return false
}

// RemoveVariant runs the remove transaction.
func (s *Service) RemoveVariant(name string) (configstore.ProfileRecord, error) {
	rec, err := s.reg.GetVariant(name)
	if err != nil {
		return nil, err
	}
	port := portOf(rec)
	settingsPath := settingsOf(rec)

	status, err := session.GetProxyStatus(port)
	if err != nil {
		return nil, err
	}
	if status.Running && status.SessionCount > 0 {
		return nil, ccserr.Conflictf(
			"variant %q's CLIProxy is running with %d active session(s) on port %d",
			name, status.SessionCount, port).
			WithHint("stop it first with `ccs cliproxy stop`")
	}

	if settingsPath != "" {
		if err := os.Remove(settingsPath); err != nil && !os.IsNotExist(err) {
			return nil, ccserr.IOf(err, "remove settings file for variant %q", name)
		}
	}
	removePortArtifacts(port)

	if err := s.reg.RemoveVariant(name); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListingEntry is one row of the merged variant listing, carrying the
// derived fields the command surface exposes beyond the stored record.
type ListingEntry struct {
	Name        string
	Type        configstore.Kind
	Port        int
	Target      string
	DefaultTier string
	Tiers       map[string]configstore.TierSpec
	HasFallback bool
}

// ListVariants returns every single and composite variant in the
// merged namespace.
func (s *Service) ListVariants() ([]ListingEntry, error) {
	merged, err := s.regAllProfiles()
	if err != nil {
		return nil, err
	}
	out := make([]ListingEntry, 0, len(merged))
	for name, rec := range merged {
		switch v := rec.(type) {
		case configstore.SingleVariantRecord:
			out = append(out, ListingEntry{Name: name, Type: configstore.KindSingleVariant, Port: v.Port, Target: v.Target})
		case configstore.CompositeVariantRecord:
			out = append(out, ListingEntry{
				Name: name, Type: configstore.KindCompositeVariant, Port: v.Port, Target: v.Target,
				DefaultTier: v.DefaultTier, Tiers: v.Tiers, HasFallback: hasFallback(v.Tiers),
			})
		}
	}
	return out, nil
}

func hasFallback(tierMap map[string]configstore.TierSpec) bool {
	for _, t := range tierMap {
		if t.Fallback != nil {
			return true
		}
	}
	return false
}

func (s *Service) regAllProfiles() (map[string]configstore.ProfileRecord, error) {
	return s.reg.GetAllProfilesMerged()
}

func (s *Service) usedPorts() (map[int]bool, error) {
	merged, err := s.regAllProfiles()
	if err != nil {
		return nil, err
	}
	used := map[int]bool{}
	for _, rec := range merged {
		if p := portOf(rec); p != 0 {
			used[p] = true
		}
	}
	return used, nil
}

func portOf(rec configstore.ProfileRecord) int {
	switch v := rec.(type) {
	case configstore.SingleVariantRecord:
		return v.Port
	case configstore.CompositeVariantRecord:
		return v.Port
	default:
		return 0
	}
}

func settingsOf(rec configstore.ProfileRecord) string {
	switch v := rec.(type) {
	case configstore.SingleVariantRecord:
		return v.Settings
	case configstore.CompositeVariantRecord:
		return v.Settings
	default:
		return ""
	}
}

func (s *Service) checkNameFree(name string) error {
	merged, err := s.regAllProfiles()
	if err != nil {
		return err
	}
	if _, ok := merged[name]; ok {
		return ccserr.Conflictf("profile %q already exists", name)
	}
	sanitized := registry.SanitizeName(name)
	for existing := range merged {
		if registry.SanitizeName(existing) == sanitized {
			return ccserr.Validationf(
				"profile name %q collides on disk with existing profile %q", name, existing)
		}
	}
	return nil
}

// unifiedAPIKey reads the unified store's bundled CLIProxy API key, if
// any; legacy-mode installs have no equivalent and get an empty token
// the Environment Resolver is responsible for backfilling at use time.
func (s *Service) unifiedAPIKey() string {
	if s.reg.Mode() != configstore.ModeUnified {
		return ""
	}
	u := configstore.NewUnifiedStore()
	if err := u.Load(); err != nil {
		return ""
	}
	return u.GetCLIProxyAPIKey()
}

func settingsPathFor(providerID, name string) string {
	return filepath.Join(configstore.Root(), fmt.Sprintf("%s-%s.settings.json", providerID, name))
}

func compositeSettingsPath(name string) string {
	return filepath.Join(configstore.Root(), fmt.Sprintf("composite-%s.settings.json", name))
}

// removePortArtifacts deletes a port's leftover CLIProxy config and
// session-lock files; a rollback target, so
// every error is swallowed rather than surfaced.
func removePortArtifacts(port int) {
	os.Remove(session.LockPath(port))
	dir := configstore.CLIProxyDir()
	matches, _ := filepath.Glob(filepath.Join(dir, fmt.Sprintf("config-%d.*", port)))
	for _, m := range matches {
		os.Remove(m)
	}
}
