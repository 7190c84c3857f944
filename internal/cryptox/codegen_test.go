package cryptox

import (
	"regexp"
	"testing"
)

func TestRandomCodeGenerator_Format(t *testing.T) {
	g := RandomCodeGenerator{}
	re := regexp.MustCompile(`^[1-9]\d{5}$`)

	for i := 0; i < 100; i++ {
		code, err := g.GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode error: %v", err)
		}
		if !re.MatchString(code) {
			t.Fatalf("code %q is not a 6-digit value in [100000, 999999]", code)
		}
	}
}

func TestFixedCodeGenerator(t *testing.T) {
	g := FixedCodeGenerator{Code: "123456"}
	for i := 0; i < 3; i++ {
		code, err := g.GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode error: %v", err)
		}
		if code != "123456" {
			t.Fatalf("code = %q, want 123456", code)
		}
	}
}
