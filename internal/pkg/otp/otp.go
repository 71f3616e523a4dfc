package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Digits is the width of every verification code.
const Digits = 6

var upperBound = big.NewInt(1_000_000)

// New returns a zero-padded 6-digit code drawn from crypto/rand.
func New() (string, error) {
	n, err := rand.Int(rand.Reader, upperBound)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}
