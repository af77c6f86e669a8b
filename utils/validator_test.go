package utils

import "testing"

type sampleForm struct {
	Product uint   `validate:"required"`
	Phone   string `validate:"required,phone254"`
	Email   string `validate:"emailok"`
	Name    string `validate:"nameok"`
}

func TestValidateStructRequired(t *testing.T) {
	err := ValidateStruct(&sampleForm{Phone: "254712345678"})
	if err == nil {
		t.Fatal("zero uint should fail required")
	}

	err = ValidateStruct(&sampleForm{Product: 1})
	if err == nil {
		t.Fatal("empty phone should fail required")
	}

	if err := ValidateStruct(&sampleForm{Product: 1, Phone: "254712345678"}); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}
}

func TestValidateStructPhone254(t *testing.T) {
	bad := []string{"0712345678", "25471234567", "2547123456789", "+254712345678", "254abc345678"}
	for _, phone := range bad {
		if err := ValidateStruct(&sampleForm{Product: 1, Phone: phone}); err == nil {
			t.Fatalf("phone %q should be rejected", phone)
		}
	}
	if err := ValidateStruct(&sampleForm{Product: 1, Phone: "254700000000"}); err != nil {
		t.Fatalf("valid phone rejected: %v", err)
	}
}

func TestValidateStructEmail(t *testing.T) {
	form := sampleForm{Product: 1, Phone: "254712345678", Email: "not-an-email"}
	if err := ValidateStruct(&form); err == nil {
		t.Fatal("malformed email should be rejected")
	}
	form.Email = "user@example.com"
	if err := ValidateStruct(&form); err != nil {
		t.Fatalf("valid email rejected: %v", err)
	}
}

func TestValidateStructName(t *testing.T) {
	form := sampleForm{Product: 1, Phone: "254712345678", Name: "jane_doe-1"}
	if err := ValidateStruct(&form); err != nil {
		t.Fatalf("valid username rejected: %v", err)
	}
	form.Name = "bad<script>"
	if err := ValidateStruct(&form); err == nil {
		t.Fatal("username with invalid characters should be rejected")
	}
}
