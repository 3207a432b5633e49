package game

import (
	"fmt"
	"math/rand"
	"strings"
)

// CodeAlphabet omits I, O, 0 and 1 so codes survive being read aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const CodeLength = 6

func GenerateCode() string {
	return randomCode(CodeLength)
}

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = CodeAlphabet[rand.Intn(len(CodeAlphabet))]
	}
	return string(b)
}

// NormalizeCode uppercases and trims user input without validating it.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode accepts exactly CodeLength symbols from CodeAlphabet.
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return fmt.Errorf("%w: %q must be %d characters", ErrInvalidCode, code, CodeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidCode, code, r)
		}
	}
	return nil
}
