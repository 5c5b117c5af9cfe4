package normalizer

import (
	"regexp"
	"testing"
)

func TestCollapseSpaces(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "hola mundo", expected: "hola mundo"},
		{name: "internal runs", input: "hola    mundo", expected: "hola mundo"},
		{name: "tabs and newlines", input: " hola\t\nmundo ", expected: "hola mundo"},
		{name: "empty", input: "", expected: ""},
		{name: "only spaces", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CollapseSpaces(tt.input); got != tt.expected {
				t.Errorf("CollapseSpaces(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSafeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase name", input: "juan perez", expected: "Juan Perez"},
		{name: "shouted name keeps short tokens", input: "JUAN PEREZ GARCIA", expected: "JUAN Perez Garcia"},
		{name: "accents preserved", input: "MARTÍN lópez", expected: "Martín López"},
		{name: "short acronyms kept", input: "DR LUIS OSORIO", expected: "DR LUIS Osorio"},
		{name: "long uppercase word cased", input: "HERNANDEZ", expected: "Hernandez"},
		{name: "collapses before casing", input: "  juan   PEREZ ", expected: "Juan Perez"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeTitle(tt.input); got != tt.expected {
				t.Errorf("SafeTitle(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidSalon(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-Z]+/[0-9A-Z]+$`)

	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "building and room", input: "1CCO4/307", valid: true},
		{name: "missing room", input: "1CCO4", valid: false},
		{name: "lowercase building", input: "1cco4/307", valid: false},
		{name: "empty passes through", input: "", valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidSalon(tt.input, pattern); got != tt.valid {
				t.Errorf("ValidSalon(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}
