package ui

import (
	"testing"
)

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	want := []string{"Nightfox", "Kanagawa", "Slate"}
	if len(names) != len(want) {
		t.Fatalf("ThemeNames() returned %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ThemeNames() = %v, want %v", names, want)
		}
	}

	names[0] = "mutated"
	if ThemeNames()[0] != "Nightfox" {
		t.Fatal("ThemeNames() exposes its backing slice")
	}
}

func TestNextTheme(t *testing.T) {
	cases := map[string]string{
		"Nightfox": "Kanagawa",
		"Kanagawa": "Slate",
		"Slate":    "Nightfox",
		"Unknown":  "Nightfox",
	}
	for current, want := range cases {
		if got := NextTheme(current); got != want {
			t.Fatalf("NextTheme(%s) = %q, want %q", current, got, want)
		}
	}
}

func TestGetTheme(t *testing.T) {
	for _, name := range ThemeNames() {
		if got := GetTheme(name).Name; got != name {
			t.Fatalf("GetTheme(%s).Name = %q", name, got)
		}
	}
	if got := GetTheme("Unknown").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(Unknown).Name = %q, want Nightfox (fallback)", got)
	}
}

func TestThemesDefineEveryBadge(t *testing.T) {
	keys := []string{"active", "inactive", "new", "edit", "view", "create", "update", "delete", "error", "success", "warning", "info"}
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, k := range keys {
			if th.Badges[k] == "" {
				t.Fatalf("%s: badge %q has no color", name, k)
			}
		}
	}
}

func TestBadgeFallsBackToMuted(t *testing.T) {
	th := GetTheme("Slate")
	styles := th.Styles()

	got := styles.Badge("  DELETE ").GetBackground()
	if got != styles.Badge("delete").GetBackground() {
		t.Fatal("Badge lookup should ignore case and surrounding space")
	}
	if bg := styles.Badge("no-such-badge").GetBackground(); bg != styles.Badge("").GetBackground() {
		t.Fatalf("unknown badge background = %v", bg)
	}
}
