package ccda

import "testing"

func TestSplitStrength(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		strength string
		unit     string
	}{
		{"strength and unit", "Acme Drug 50 MG Tablet", "50", "MG"},
		{"no unit token", "Acme Drug Tablet", "", ""},
		{"unit at position one", "MG Tablet", "", "MG"},
		{"slash unit", "Acme Syrup 12.5 MG/5ML Solution", "12.5", "MG/5ML"},
		{"meq unit", "Potassium Chloride 20 MEQ Tablet", "20", "MEQ"},
		{"unt unit", "Insulin Glargine 100 UNT/ML Injection", "100", "UNT/ML"},
		{"lowercase unit", "Acme Drug 50 mg Tablet", "50", "mg"},
		{"empty input", "", "", ""},
		{"non-numeric strength accepted", "Acme Drug extra MG Tablet", "extra", "MG"},
		{"first unit wins", "Acme 10 MG 20 MEQ Mix", "10", "MG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strength, unit := SplitStrength(tt.input)
			if strength != tt.strength {
				t.Errorf("strength: got %q, want %q", strength, tt.strength)
			}
			if unit != tt.unit {
				t.Errorf("unit: got %q, want %q", unit, tt.unit)
			}
		})
	}
}

func TestIsUnitToken(t *testing.T) {
	for _, tok := range []string{"MG", "mg", "MEQ", "UNT", "MG/ML", "meq/5ml"} {
		if !isUnitToken(tok) {
			t.Errorf("expected %q to be a unit token", tok)
		}
	}
	for _, tok := range []string{"", "MGX", "TABLET", "50", "M", "UNIT"} {
		if isUnitToken(tok) {
			t.Errorf("expected %q not to be a unit token", tok)
		}
	}
}
