package registry

import (
	"fmt"
	"time"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/configstore"
)

// Registry is the Profile Registry, component B. It never probes
// filesystem state to decide which store a write targets — mode is an
// explicit constructor argument.
type Registry struct {
	mode    configstore.Mode
	legacy  *configstore.LegacyStore
	unified *configstore.UnifiedStore
}

func New(mode configstore.Mode, legacy *configstore.LegacyStore, unified *configstore.UnifiedStore) *Registry {
	return &Registry{mode: mode, legacy: legacy, unified: unified}
}

// Mode reports which store writes target.
func (r *Registry) Mode() configstore.Mode {
	return r.mode
}

// AccountMeta carries the caller-supplied context-policy fields for
// CreateAccount/UpdateAccount; Normalize is always applied before a
// write.
type AccountMeta struct {
	ContextMode    configstore.ContextMode
	ContextGroup   string
	ContinuityMode configstore.ContinuityMode
}

func (r *Registry) unifiedLoaded() (*configstore.UnifiedStore, error) {
	if err := r.unified.Load(); err != nil {
		return nil, err
	}
	return r.unified, nil
}

// HasAccount reports whether name resolves to an account in the merged
// namespace.
func (r *Registry) HasAccount(name string) (bool, error) {
	_, err := r.GetAccount(name)
	if err != nil {
		if ccserr.KindOf(err) == ccserr.NotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetAccount resolves name to an AccountRecord, erroring (with a
// fuzzy "did you mean" hint) if it is absent or names a different kind.
func (r *Registry) GetAccount(name string) (configstore.AccountRecord, error) {
	merged, err := r.GetAllProfilesMerged()
	if err != nil {
		return configstore.AccountRecord{}, err
	}
	rec, ok := merged[name]
	if !ok {
		return configstore.AccountRecord{}, r.notFound(name, merged)
	}
	acc, ok := rec.(configstore.AccountRecord)
	if !ok {
		return configstore.AccountRecord{}, ccserr.NotFoundf("profile %q is not an account", name)
	}
	return acc, nil
}

func (r *Registry) notFound(name string, merged map[string]configstore.ProfileRecord) error {
	names := make([]string, 0, len(merged))
	for n := range merged {
		names = append(names, n)
	}
	if suggestion, ok := Suggest(name, names); ok {
		return ccserr.NotFoundf("profile %q not found", name).
			WithHint(fmt.Sprintf("did you mean %q?", suggestion))
	}
	return ccserr.NotFoundf("profile %q not found", name)
}

func (r *Registry) checkFilesystemCollision(name string) error {
	merged, err := r.GetAllProfilesMerged()
	if err != nil {
		return err
	}
	sanitized := SanitizeName(name)
	for existing := range merged {
		if existing == name {
			continue
		}
		if SanitizeName(existing) == sanitized {
			return ccserr.Validationf(
				"profile name %q collides on disk with existing profile %q", name, existing)
		}
	}
	return nil
}

// CreateAccount creates a new account profile in the store selected by
// the Registry's mode. It does not set the default.
func (r *Registry) CreateAccount(name string, meta AccountMeta) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	exists, err := r.HasAccount(name)
	if err != nil {
		return err
	}
	if exists {
		return ccserr.Conflictf("profile %q already exists", name).
			WithHint("choose a different name, or run `ccs auth remove` first")
	}
	if err := r.checkFilesystemCollision(name); err != nil {
		return err
	}

	rec := Normalize(configstore.AccountRecord{
		Created:        time.Now().UTC().Format(time.RFC3339),
		ContextMode:    meta.ContextMode,
		ContextGroup:   meta.ContextGroup,
		ContinuityMode: meta.ContinuityMode,
	})
	return r.writeAccount(name, rec)
}

// UpdateAccount merges partial context fields into the existing record
// and re-normalizes.
func (r *Registry) UpdateAccount(name string, partial AccountMeta) error {
	current, err := r.GetAccount(name)
	if err != nil {
		return err
	}
	current.ContextMode = partial.ContextMode
	current.ContextGroup = partial.ContextGroup
	current.ContinuityMode = partial.ContinuityMode
	return r.writeAccount(name, Normalize(current))
}

// TouchAccount sets last_used to now.
func (r *Registry) TouchAccount(name string) error {
	current, err := r.GetAccount(name)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	current.LastUsed = &now
	return r.writeAccount(name, current)
}

// RemoveAccount deletes the account. In the legacy store, if the
// removed name was the default, the new default becomes the first
// remaining profile or null.
func (r *Registry) RemoveAccount(name string) error {
	if _, err := r.GetAccount(name); err != nil {
		return err
	}
	switch r.mode {
	case configstore.ModeUnified:
		u, err := r.unifiedLoaded()
		if err != nil {
			return err
		}
		u.DeleteAccount(name)
		if def, ok := u.GetDefault(); ok && def == name {
			u.ClearDefault()
		}
		return u.Save()
	default:
		return r.legacy.DeleteRecord(name)
	}
}

func (r *Registry) writeAccount(name string, rec configstore.AccountRecord) error {
	switch r.mode {
	case configstore.ModeUnified:
		u, err := r.unifiedLoaded()
		if err != nil {
			return err
		}
		if err := u.SetAccount(name, rec); err != nil {
			return err
		}
		return u.Save()
	default:
		return r.legacy.SetRecord(name, rec)
	}
}

// GetAllProfiles returns every profile in the store selected by mode
// (not merged).
func (r *Registry) GetAllProfiles() (map[string]configstore.ProfileRecord, error) {
	switch r.mode {
	case configstore.ModeUnified:
		u, err := r.unifiedLoaded()
		if err != nil {
			return nil, err
		}
		return unifiedProfiles(u)
	default:
		return legacyProfiles(r.legacy)
	}
}

func unifiedProfiles(u *configstore.UnifiedStore) (map[string]configstore.ProfileRecord, error) {
	out := map[string]configstore.ProfileRecord{}
	accounts, err := u.GetAccounts()
	if err != nil {
		return nil, err
	}
	for name, acc := range accounts {
		out[name] = Normalize(acc)
	}
	variants, err := u.GetVariants()
	if err != nil {
		return nil, err
	}
	for name, v := range variants {
		out[name] = v
	}
	return out, nil
}

func legacyProfiles(legacy *configstore.LegacyStore) (map[string]configstore.ProfileRecord, error) {
	f, err := legacy.Load()
	if err != nil {
		return nil, err
	}
	out := map[string]configstore.ProfileRecord{}
	for name, raw := range f.Profiles {
		rec, err := configstore.DecodeRecord(raw)
		if err != nil {
			continue
		}
		if acc, ok := rec.(configstore.AccountRecord); ok {
			rec = Normalize(acc)
		}
		out[name] = rec
	}
	return out, nil
}

// GetAllProfilesMerged merges both stores: legacy entries first, then
// unified entries overwrite same-name keys.
func (r *Registry) GetAllProfilesMerged() (map[string]configstore.ProfileRecord, error) {
	out, err := legacyProfiles(r.legacy)
	if err != nil {
		return nil, err
	}

	if r.unified != nil {
		if err := r.unified.Load(); err != nil {
			return nil, err
		}
		unified, err := unifiedProfiles(r.unified)
		if err != nil {
			return nil, err
		}
		for name, rec := range unified {
			out[name] = rec
		}
	}

	return out, nil
}

// GetDefault returns the default pointer of the store selected by mode.
func (r *Registry) GetDefault() (string, bool, error) {
	switch r.mode {
	case configstore.ModeUnified:
		if err := r.unified.Load(); err != nil {
			return "", false, err
		}
		name, ok := r.unified.GetDefault()
		return name, ok, nil
	default:
		return r.legacy.GetDefault()
	}
}

// GetDefaultResolved returns the unified default if set, else the
// legacy default.
func (r *Registry) GetDefaultResolved() (string, bool, error) {
	if r.unified != nil {
		if err := r.unified.Load(); err != nil {
			return "", false, err
		}
		if name, ok := r.unified.GetDefault(); ok {
			return name, true, nil
		}
	}
	return r.legacy.GetDefault()
}

// SetDefault points the mode-selected store's default at name, failing
// if name does not resolve in the merged namespace.
func (r *Registry) SetDefault(name string) error {
	merged, err := r.GetAllProfilesMerged()
	if err != nil {
		return err
	}
	if _, ok := merged[name]; !ok {
		return r.notFound(name, merged)
	}
	switch r.mode {
	case configstore.ModeUnified:
		u, err := r.unifiedLoaded()
		if err != nil {
			return err
		}
		u.SetDefault(name)
		return u.Save()
	default:
		return r.legacy.SetDefault(name)
	}
}

// SetVariant upserts a single or composite variant record into the
// mode-selected store.
func (r *Registry) SetVariant(name string, rec configstore.ProfileRecord) error {
	switch r.mode {
	case configstore.ModeUnified:
		u, err := r.unifiedLoaded()
		if err != nil {
			return err
		}
		if err := u.SetVariant(name, rec); err != nil {
			return err
		}
		return u.Save()
	default:
		return r.legacy.SetRecord(name, rec)
	}
}

// RemoveVariant deletes a variant record, clearing the default if it
// pointed at name.
func (r *Registry) RemoveVariant(name string) error {
	switch r.mode {
	case configstore.ModeUnified:
		u, err := r.unifiedLoaded()
		if err != nil {
			return err
		}
		u.DeleteVariant(name)
		if def, ok := u.GetDefault(); ok && def == name {
			u.ClearDefault()
		}
		return u.Save()
	default:
		return r.legacy.DeleteRecord(name)
	}
}

// GetVariant resolves name to its single or composite variant record.
func (r *Registry) GetVariant(name string) (configstore.ProfileRecord, error) {
	merged, err := r.GetAllProfilesMerged()
	if err != nil {
		return nil, err
	}
	rec, ok := merged[name]
	if !ok {
		return nil, r.notFound(name, merged)
	}
	switch rec.(type) {
	case configstore.SingleVariantRecord, configstore.CompositeVariantRecord:
		return rec, nil
	default:
		return nil, ccserr.NotFoundf("profile %q is not a CLIProxy variant", name)
	}
}

// ClearDefault nulls out the mode-selected store's default pointer.
func (r *Registry) ClearDefault() error {
	switch r.mode {
	case configstore.ModeUnified:
		u, err := r.unifiedLoaded()
		if err != nil {
			return err
		}
		u.ClearDefault()
		return u.Save()
	default:
		return r.legacy.ClearDefault()
	}
}
