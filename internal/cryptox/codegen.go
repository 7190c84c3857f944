package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeGenerator produces 6-digit verification codes. The production
// implementation is random; a fixed-code implementation exists only for demo
// deployments and must be enabled through explicit configuration.
type CodeGenerator interface {
	GenerateCode() (string, error)
}

// RandomCodeGenerator returns a uniformly random code in [100000, 999999]
// using crypto/rand.
type RandomCodeGenerator struct{}

func (RandomCodeGenerator) GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// FixedCodeGenerator always returns the same code. It exists so demo
// instances can be exercised without email delivery. Constructors wiring it
// in are expected to log loudly; it must never be selected implicitly.
type FixedCodeGenerator struct {
	Code string
}

func (g FixedCodeGenerator) GenerateCode() (string, error) {
	return g.Code, nil
}
