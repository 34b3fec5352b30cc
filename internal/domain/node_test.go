package domain

import (
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Night Owl", "night_owl"},
		{"punctuation collapses", "Night  Owl!", "night_owl"},
		{"mixed separators", "early-riser (mornings)", "early_riser_mornings"},
		{"leading and trailing junk", "  --London--  ", "london"},
		{"digits kept", "Flight BA117", "flight_ba117"},
		{"empty", "", ""},
		{"only junk", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalNodeID(t *testing.T) {
	t.Run("canonical types share one id per label", func(t *testing.T) {
		a := CanonicalNodeID(NodeTypeTrait, "Night Owl")
		b := CanonicalNodeID(NodeTypeTrait, "night owl")
		if a != b {
			t.Errorf("expected stable id, got %q and %q", a, b)
		}
		if a != "trait_night_owl" {
			t.Errorf("unexpected id %q", a)
		}
	})

	t.Run("non-canonical types get a uniqueness token", func(t *testing.T) {
		a := CanonicalNodeID(NodeTypeFact, "prefers tea")
		b := CanonicalNodeID(NodeTypeFact, "prefers tea")
		if a == b {
			t.Errorf("expected distinct ids, got %q twice", a)
		}
		if !strings.HasPrefix(a, "fact_prefers_tea_") {
			t.Errorf("unexpected id %q", a)
		}
	})
}

func TestNodeDataGet(t *testing.T) {
	d := NodeData{
		Organization: "Acme",
		Email:        "a@example.com",
		Extra:        map[string]string{"home_city": "London"},
	}

	if v, ok := d.Get("email"); !ok || v != "a@example.com" {
		t.Errorf("Get(email) = %q, %v", v, ok)
	}
	// "company" is an accepted alias for organization.
	if v, ok := d.Get("company"); !ok || v != "Acme" {
		t.Errorf("Get(company) = %q, %v", v, ok)
	}
	if v, ok := d.Get("home_city"); !ok || v != "London" {
		t.Errorf("Get(home_city) = %q, %v", v, ok)
	}
	if _, ok := d.Get("phone"); ok {
		t.Error("expected miss for unset field")
	}
}

func TestCanonicalTypes(t *testing.T) {
	canonical := []NodeType{NodeTypeTrait, NodeTypePlace, NodeTypeEvent, NodeTypeInterest}
	for _, nt := range canonical {
		if !nt.Canonical() {
			t.Errorf("%s should be canonical", nt)
		}
	}
	for _, nt := range []NodeType{NodeTypePerson, NodeTypeFact, NodeTypeUser, NodeTypeSource} {
		if nt.Canonical() {
			t.Errorf("%s should not be canonical", nt)
		}
	}
}
