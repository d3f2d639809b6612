package metadata

import "testing"

// TestHealthDefaults verifies all features start enabled
func TestHealthDefaults(t *testing.T) {
	h := NewHealth()
	for _, f := range []string{FeatureIntegrity, FeatureRecovery, FeatureSecurity, "unknown"} {
		if !h.IsEnabled(f) {
			t.Errorf("IsEnabled(%q) = false, want true", f)
		}
	}
	if len(h.Warnings()) != 0 {
		t.Errorf("Warnings() = %v, want empty", h.Warnings())
	}
}

// TestDisableIsIdempotent verifies one warning per feature and no re-enable
func TestDisableIsIdempotent(t *testing.T) {
	h := NewHealth()

	h.Disable(FeatureIntegrity, "could not write integrity metadata")
	h.Disable(FeatureIntegrity, "second failure, should be ignored")
	h.Disable(FeatureIntegrity, "")

	if h.IsEnabled(FeatureIntegrity) {
		t.Error("IsEnabled(integrity) = true after Disable")
	}
	warnings := h.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("Warnings() count = %d, want 1", len(warnings))
	}
	if warnings[0] != "could not write integrity metadata" {
		t.Errorf("warning = %q, want first reason", warnings[0])
	}

	// Other features are unaffected.
	if !h.IsEnabled(FeatureRecovery) || !h.IsEnabled(FeatureSecurity) {
		t.Error("disabling one feature affected another")
	}
}

// TestDisableDefaultReason verifies a reason is synthesized when empty
func TestDisableDefaultReason(t *testing.T) {
	h := NewHealth()
	h.Disable(FeatureRecovery, "")
	warnings := h.Warnings()
	if len(warnings) != 1 || warnings[0] == "" {
		t.Fatalf("Warnings() = %v, want one synthesized reason", warnings)
	}
}

// TestWarningsCopy verifies callers cannot mutate internal state
func TestWarningsCopy(t *testing.T) {
	h := NewHealth()
	h.Disable(FeatureSecurity, "boom")
	w := h.Warnings()
	w[0] = "mutated"
	if h.Warnings()[0] != "boom" {
		t.Error("Warnings() exposed internal slice")
	}
}
