package validation

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"already E.164", "+64211234567", "+64211234567", false},
		{"national with leading zero", "021 123 4567", "+64211234567", false},
		{"hyphens and parens", "(021) 123-4567", "+64211234567", false},
		{"international dialing prefix", "0064211234567", "+64211234567", false},
		{"australian E.164", "+61412345678", "+61412345678", false},
		{"dots", "021.123.4567", "+64211234567", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"letters", "+64abc", "", true},
		{"too short", "+641", "", true},
		{"plus zero country code", "+0211234567", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizePhone(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	if err := ValidatePhone("+64211234567"); err != nil {
		t.Errorf("valid number rejected: %v", err)
	}
	if err := ValidatePhone("021 123 4567"); err == nil {
		t.Error("national format accepted, want error")
	}
}
