package auth

import "testing"

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name    string
		pw      string
		wantErr bool
	}{
		{"valid password", "Abcdef12", false},
		{"too short", "Ab1defg", true},
		{"no uppercase", "abcdef12", true},
		{"no lowercase", "ABCDEF12", true},
		{"no digit", "Abcdefgh", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.pw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePasswordStrength(%q) error = %v, wantErr %v", tt.pw, err, tt.wantErr)
			}
		})
	}
}

func TestHashPassword_VerifyPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("Abcdef12")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !VerifyPassword(hash, "Abcdef12") {
		t.Error("VerifyPassword() = false, want true for matching password")
	}
	if VerifyPassword(hash, "WrongPass1") {
		t.Error("VerifyPassword() = true, want false for mismatched password")
	}
}

func TestGenerateTempPassword_SatisfiesStrengthPolicy(t *testing.T) {
	for i := 0; i < 20; i++ {
		pw := GenerateTempPassword()
		if len(pw) != 12 {
			t.Fatalf("GenerateTempPassword() length = %d, want 12", len(pw))
		}
		if err := ValidatePasswordStrength(pw); err != nil {
			t.Errorf("GenerateTempPassword() = %q, fails strength policy: %v", pw, err)
		}
	}
}
