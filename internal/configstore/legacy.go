package configstore

import (
	"encoding/json"
	"fmt"
)

// LegacyFile is the on-disk shape of profiles.json.
type LegacyFile struct {
	Version  string                     `json:"version"`
	Default  *string                    `json:"default"`
	Profiles map[string]json.RawMessage `json:"profiles"`
}

// LegacyStore reads and writes profiles.json.
type LegacyStore struct {
	path string
}

func NewLegacyStore() *LegacyStore {
	return &LegacyStore{path: ProfilesPath()}
}

// Load returns the empty default structure if profiles.json is absent.
func (s *LegacyStore) Load() (*LegacyFile, error) {
	data, exists, err := ReadFileOrEmpty(s.path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &LegacyFile{Version: "2.0.0", Profiles: map[string]json.RawMessage{}}, nil
	}

	var f LegacyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("configstore: parse %s: %w", s.path, err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]json.RawMessage{}
	}
	return &f, nil
}

// Save writes the legacy file atomically.
func (s *LegacyStore) Save(f *LegacyFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("configstore: encode %s: %w", s.path, err)
	}
	data = append(data, '\n')
	return WriteFileAtomic(s.path, data, 0o600)
}

// recordEnvelope peeks the "type" discriminator without committing to a
// concrete record shape.
type recordEnvelope struct {
	Type string `json:"type"`
}

// DecodeRecord turns a raw JSON object into the concrete ProfileRecord
// it represents. Records with no "type" (or type="account") decode as
// AccountRecord; this is the one place dynamic-looking JSON is allowed
// to exist, and only for the instant it takes to become a tagged type.
func DecodeRecord(raw json.RawMessage) (ProfileRecord, error) {
	var env recordEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("configstore: decode record: %w", err)
	}

	switch Kind(env.Type) {
	case KindCompositeVariant:
		var r CompositeVariantRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return r, nil
	case KindSingleVariant:
		var r SingleVariantRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return r, nil
	default:
		var r AccountRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return r, nil
	}
}

// EncodeRecord serializes rec back to JSON with its "type" discriminator
// set explicitly, even for accounts (whose Go struct has no Type field
// of its own — the envelope is added on the way out).
func EncodeRecord(rec ProfileRecord) (json.RawMessage, error) {
	switch v := rec.(type) {
	case AccountRecord:
		return stampType(v, string(KindAccount))
	case SingleVariantRecord:
		return stampType(v, string(KindSingleVariant))
	case CompositeVariantRecord:
		v.Type = string(KindCompositeVariant)
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("configstore: unknown record type %T", rec)
	}
}

func stampType(v interface{}, kind string) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["type"] = kind
	return json.Marshal(m)
}

// GetAccounts returns every AccountRecord in the legacy store, silently
// skipping entries of a different kind.
func (s *LegacyStore) GetAccounts() (map[string]AccountRecord, error) {
	f, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]AccountRecord, len(f.Profiles))
	for name, raw := range f.Profiles {
		rec, err := DecodeRecord(raw)
		if err != nil {
			continue
		}
		if acc, ok := rec.(AccountRecord); ok {
			out[name] = acc
		}
	}
	return out, nil
}

// GetRecord returns any record kind by name.
func (s *LegacyStore) GetRecord(name string) (ProfileRecord, bool, error) {
	f, err := s.Load()
	if err != nil {
		return nil, false, err
	}
	raw, ok := f.Profiles[name]
	if !ok {
		return nil, false, nil
	}
	rec, err := DecodeRecord(raw)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// SetRecord upserts a record by name (one read-mutate-write cycle).
func (s *LegacyStore) SetRecord(name string, rec ProfileRecord) error {
	f, err := s.Load()
	if err != nil {
		return err
	}
	raw, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	f.Profiles[name] = raw
	return s.Save(f)
}

// DeleteRecord removes a record by name. If it was the default, the
// default reassigns to the first remaining profile, or null.
func (s *LegacyStore) DeleteRecord(name string) error {
	f, err := s.Load()
	if err != nil {
		return err
	}
	delete(f.Profiles, name)
	if f.Default != nil && *f.Default == name {
		f.Default = firstRemaining(f.Profiles)
	}
	return s.Save(f)
}

func firstRemaining(profiles map[string]json.RawMessage) *string {
	var first string
	found := false
	for name := range profiles {
		if !found || name < first {
			first = name
			found = true
		}
	}
	if !found {
		return nil
	}
	return &first
}

// GetDefault returns the legacy store's default profile name, if any.
func (s *LegacyStore) GetDefault() (string, bool, error) {
	f, err := s.Load()
	if err != nil {
		return "", false, err
	}
	if f.Default == nil {
		return "", false, nil
	}
	return *f.Default, true, nil
}

// SetDefault points the legacy default at name.
func (s *LegacyStore) SetDefault(name string) error {
	f, err := s.Load()
	if err != nil {
		return err
	}
	f.Default = &name
	return s.Save(f)
}

// ClearDefault nulls out the legacy default.
func (s *LegacyStore) ClearDefault() error {
	f, err := s.Load()
	if err != nil {
		return err
	}
	f.Default = nil
	return s.Save(f)
}
