package variant

import (
	"testing"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/registry"
)

func newTestService(t *testing.T, mode configstore.Mode) *Service {
	t.Helper()
	t.Setenv("CCS_HOME", t.TempDir())
	reg := registry.New(mode, configstore.NewLegacyStore(), configstore.NewUnifiedStore())
	return New(reg)
}

func TestCreateSingleVariantAllocatesPortAndSettings(t *testing.T) {
	s := newTestService(t, configstore.ModeLegacyOnly)

	rec, err := s.CreateSingleVariant(CreateSingleInput{
		Name: "g1", Provider: "gemini", Model: "gemini-2.5-pro", Backend: "original",
	})
	if err != nil {
		t.Fatalf("CreateSingleVariant: %v", err)
	}
	if rec.Port < minPort || rec.Port > maxPort {
		t.Fatalf("port %d out of range", rec.Port)
	}
	if rec.Target != "claude" {
		t.Fatalf("expected default target claude, got %q", rec.Target)
	}

	_, env, err := LoadSettings(rec.Settings)
	if err != nil {
		t.Fatal(err)
	}
	if env["ANTHROPIC_MODEL"] != "gemini-2.5-pro" {
		t.Fatalf("expected model in settings env, got %+v", env)
	}
}

func TestCreateSingleVariantRejectsPlusOnlyOnOriginalBackend(t *testing.T) {
	s := newTestService(t, configstore.ModeLegacyOnly)
	_, err := s.CreateSingleVariant(CreateSingleInput{
		Name: "k1", Provider: "kiro", Model: "m", Backend: "original",
	})
	if ccserr.KindOf(err) != ccserr.Validation {
		t.Fatalf("expected validation error for plus-only provider, got %v", err)
	}
}

func TestCreateSingleVariantPortUniqueness(t *testing.T) {
	s := newTestService(t, configstore.ModeLegacyOnly)
	seen := map[int]bool{}
	for i := 0; i < 5; i++ {
		rec, err := s.CreateSingleVariant(CreateSingleInput{
			Name: "v" + string(rune('a'+i)), Provider: "gemini", Model: "m", Backend: "original",
		})
		if err != nil {
			t.Fatal(err)
		}
		if seen[rec.Port] {
			t.Fatalf("port %d reused across variants", rec.Port)
		}
		seen[rec.Port] = true
	}
}

func TestCreateCompositeVariantRequiresUnifiedMode(t *testing.T) {
	s := newTestService(t, configstore.ModeLegacyOnly)
	_, err := s.CreateCompositeVariant(CreateCompositeInput{
		Name: "mix", DefaultTier: "opus",
		Tiers: fullTiers(),
	})
	if ccserr.KindOf(err) != ccserr.Validation {
		t.Fatalf("expected validation error outside unified mode, got %v", err)
	}
}

func fullTiers() map[string]configstore.TierSpec {
	return map[string]configstore.TierSpec{
		"opus":   {Provider: "gemini", Model: "gemini-2.5-pro"},
		"sonnet": {Provider: "codex", Model: "gpt-5-codex"},
		"haiku":  {Provider: "qwen", Model: "qwen-turbo"},
	}
}

func TestCreateCompositeVariantPreservesTierFallback(t *testing.T) {
	s := newTestService(t, configstore.ModeUnified)
	tierMap := fullTiers()
	tierMap["opus"] = configstore.TierSpec{
		Provider: "gemini", Model: "gemini-2.5-pro",
		Fallback: &configstore.FallbackSpec{Provider: "codex", Model: "gpt-5-codex"},
	}

	rec, err := s.CreateCompositeVariant(CreateCompositeInput{
		Name: "mix", DefaultTier: "opus", Tiers: tierMap,
	})
	if err != nil {
		t.Fatalf("CreateCompositeVariant: %v", err)
	}
	if rec.Tiers["opus"].Fallback == nil || rec.Tiers["opus"].Fallback.Provider != "codex" {
		t.Fatalf("expected fallback preserved, got %+v", rec.Tiers["opus"])
	}

	updated, err := s.UpdateCompositeVariant("mix", UpdateCompositeInput{
		Tiers: map[string]configstore.TierSpec{"sonnet": {Model: "gpt-5-codex-preview"}},
	})
	if err != nil {
		t.Fatalf("UpdateCompositeVariant: %v", err)
	}
	if updated.Tiers["opus"].Fallback == nil {
		t.Fatalf("update dropped untouched tier's fallback: %+v", updated.Tiers["opus"])
	}
	if updated.Tiers["sonnet"].Model != "gpt-5-codex-preview" {
		t.Fatalf("expected sonnet model updated, got %+v", updated.Tiers["sonnet"])
	}
	if updated.Tiers["sonnet"].Provider != "codex" {
		t.Fatalf("expected sonnet provider preserved by partial merge, got %+v", updated.Tiers["sonnet"])
	}
}

func TestCreateCompositeVariantRejectsFallbackSelfCycle(t *testing.T) {
	s := newTestService(t, configstore.ModeUnified)
	tierMap := fullTiers()
	tierMap["opus"] = configstore.TierSpec{
		Provider: "gemini", Model: "gemini-2.5-pro",
		Fallback: &configstore.FallbackSpec{Provider: "gemini", Model: "gemini-2.5-pro"},
	}
	_, err := s.CreateCompositeVariant(CreateCompositeInput{Name: "mix", DefaultTier: "opus", Tiers: tierMap})
	if ccserr.KindOf(err) != ccserr.Validation {
		t.Fatalf("expected validation error for self-cycle fallback, got %v", err)
	}
}

func TestUpdateSingleVariantRequiresModelWithProviderChange(t *testing.T) {
	s := newTestService(t, configstore.ModeLegacyOnly)
	_, err := s.CreateSingleVariant(CreateSingleInput{Name: "g1", Provider: "gemini", Model: "m1", Backend: "original"})
	if err != nil {
		t.Fatal(err)
	}
	newProvider := "codex"
	_, err = s.UpdateSingleVariant("g1", UpdateSingleInput{Provider: &newProvider})
	if ccserr.KindOf(err) != ccserr.Validation {
		t.Fatalf("expected validation error for provider change without model, got %v", err)
	}
}

func TestRemoveVariantDeletesSettingsFile(t *testing.T) {
	s := newTestService(t, configstore.ModeLegacyOnly)
	rec, err := s.CreateSingleVariant(CreateSingleInput{Name: "g1", Provider: "gemini", Model: "m1", Backend: "original"})
	if err != nil {
		t.Fatal(err)
	}

	removed, err := s.RemoveVariant("g1")
	if err != nil {
		t.Fatalf("RemoveVariant: %v", err)
	}
	single, ok := removed.(configstore.SingleVariantRecord)
	if !ok || single.Port != rec.Port {
		t.Fatalf("expected removed record returned, got %+v", removed)
	}

	if _, env, _ := LoadSettings(rec.Settings); len(env) != 0 {
		t.Fatalf("expected settings file deleted, got env %+v", env)
	}
}

func TestListVariantsDerivesHasFallback(t *testing.T) {
	s := newTestService(t, configstore.ModeUnified)
	tierMap := fullTiers()
	tierMap["haiku"] = configstore.TierSpec{
		Provider: "qwen", Model: "qwen-turbo",
		Fallback: &configstore.FallbackSpec{Provider: "iflow", Model: "iflow-1"},
	}
	if _, err := s.CreateCompositeVariant(CreateCompositeInput{Name: "mix", DefaultTier: "opus", Tiers: tierMap}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateSingleVariant(CreateSingleInput{Name: "g1", Provider: "gemini", Model: "m1", Backend: "original"}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.ListVariants()
	if err != nil {
		t.Fatal(err)
	}
	var sawComposite, sawSingle bool
	for _, e := range entries {
		if e.Name == "mix" {
			sawComposite = true
			if !e.HasFallback {
				t.Fatalf("expected mix to derive hasFallback=true, got %+v", e)
			}
		}
		if e.Name == "g1" {
			sawSingle = true
		}
	}
	if !sawComposite || !sawSingle {
		t.Fatalf("expected both variants listed, got %+v", entries)
	}
}
