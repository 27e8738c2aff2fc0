package catalog

import (
	"context"
	"testing"
)

func TestSettings(t *testing.T) {
	c := setupTestDB(t)
	ctx := context.Background()

	// Unset key: found == false, no error.
	value, found, err := c.GetSetting(ctx, "theme")
	if err != nil {
		t.Fatalf("GetSetting on unset key failed: %v", err)
	}
	if found || value != "" {
		t.Errorf("GetSetting(unset) = (%q, %v), want (\"\", false)", value, found)
	}

	if err := c.SetSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	value, found, err = c.GetSetting(ctx, "theme")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if !found || value != "dark" {
		t.Errorf("GetSetting = (%q, %v), want (\"dark\", true)", value, found)
	}

	// Overwrite
	if err := c.SetSetting(ctx, "theme", "light"); err != nil {
		t.Fatalf("SetSetting(overwrite) failed: %v", err)
	}
	value, _, err = c.GetSetting(ctx, "theme")
	if err != nil {
		t.Fatalf("GetSetting after overwrite failed: %v", err)
	}
	if value != "light" {
		t.Errorf("value after overwrite = %q, want light", value)
	}

	// Empty string is a legitimate stored value, distinct from unset.
	if err := c.SetSetting(ctx, "empty", ""); err != nil {
		t.Fatalf("SetSetting(empty) failed: %v", err)
	}
	value, found, err = c.GetSetting(ctx, "empty")
	if err != nil {
		t.Fatalf("GetSetting(empty) failed: %v", err)
	}
	if !found || value != "" {
		t.Errorf("GetSetting(empty) = (%q, %v), want (\"\", true)", value, found)
	}
}
