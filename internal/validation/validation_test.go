package validation

import (
	"strings"
	"testing"
)

// --- ValidateUTF8 Tests ---

func TestValidateUTF8(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"ascii", "Milk", false},
		{"empty", "", false},
		{"umlaut", "Äpfel", false},
		{"emoji", "Eier 🥚", false},
		{"invalid bytes", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUTF8("label", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUTF8(%q) = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil && err.Field != "label" {
				t.Errorf("error.Field = %q, want %q", err.Field, "label")
			}
		})
	}
}

// --- ValidateNoNullBytes Tests ---

func TestValidateNoNullBytes(t *testing.T) {
	if err := ValidateNoNullBytes("name", "Groceries"); err != nil {
		t.Errorf("ValidateNoNullBytes(clean) = %v, want nil", err)
	}
	if err := ValidateNoNullBytes("name", "Groc\x00eries"); err == nil {
		t.Error("ValidateNoNullBytes(with null) = nil, want error")
	}
}

// --- ValidateMaxLength Tests ---

func TestValidateMaxLength(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		max     int
		wantErr bool
	}{
		{"within", "Milk", 10, false},
		{"at limit", "abcde", 5, false},
		{"exceeds", "abcdef", 5, true},
		{"multibyte counts runes", "äöüßé", 5, false},
		{"multibyte exceeds", "äöüßéa", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMaxLength("label", tt.value, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMaxLength(%q, %d) = %v, wantErr %v", tt.value, tt.max, err, tt.wantErr)
			}
		})
	}
}

// --- ValidateRequired Tests ---

func TestValidateRequired(t *testing.T) {
	if err := ValidateRequired("id", "I1"); err != nil {
		t.Errorf("ValidateRequired(non-empty) = %v, want nil", err)
	}
	for _, v := range []string{"", "   ", "\t\n"} {
		err := ValidateRequired("id", v)
		if err == nil {
			t.Errorf("ValidateRequired(%q) = nil, want error", v)
			continue
		}
		if err.Message != "is required" {
			t.Errorf("error.Message = %q, want %q", err.Message, "is required")
		}
	}
}

// --- ValidateEnum Tests ---

func TestValidateEnum(t *testing.T) {
	allowed := []string{"upsert-item", "delete-item"}

	if err := ValidateEnum("type", "delete-item", allowed); err != nil {
		t.Errorf("ValidateEnum(valid) = %v, want nil", err)
	}

	err := ValidateEnum("type", "Delete-Item", allowed)
	if err == nil {
		t.Fatal("ValidateEnum is case sensitive, want error")
	}
	if !strings.Contains(err.Message, "upsert-item, delete-item") {
		t.Errorf("error.Message = %q, should list allowed values", err.Message)
	}
}

// --- Numeric Tests ---

func TestValidatePositive(t *testing.T) {
	if err := ValidatePositive("updatedAt", 1); err != nil {
		t.Errorf("ValidatePositive(1) = %v, want nil", err)
	}
	if err := ValidatePositive("updatedAt", 0); err == nil {
		t.Error("ValidatePositive(0) = nil, want error")
	}
	if err := ValidatePositive("updatedAt", -5); err == nil {
		t.Error("ValidatePositive(-5) = nil, want error")
	}
}

func TestValidateNonNegative(t *testing.T) {
	if err := ValidateNonNegative("since", 0); err != nil {
		t.Errorf("ValidateNonNegative(0) = %v, want nil", err)
	}
	if err := ValidateNonNegative("since", -1); err == nil {
		t.Error("ValidateNonNegative(-1) = nil, want error")
	}
}

// --- Collector Tests ---

func TestCollector_AccumulatesErrors(t *testing.T) {
	var c Collector
	c.Add(&ValidationError{Field: "a", Message: "bad"})
	c.Add(nil)
	c.Add(&ValidationError{Field: "b", Message: "bad"})

	if !c.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
	if len(c.Errors()) != 2 {
		t.Errorf("len(Errors()) = %d, want 2", len(c.Errors()))
	}
}

func TestCollector_Empty(t *testing.T) {
	var c Collector
	if c.HasErrors() {
		t.Error("HasErrors() on empty collector = true, want false")
	}
	if c.Errors() != nil {
		t.Errorf("Errors() on empty collector = %v, want nil", c.Errors())
	}
}
