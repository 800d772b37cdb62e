package ledger

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns a secret into its stored form and compares candidates against it.
// Passwords and card PINs go through the account's Hasher.
type Hasher interface {
	// Hash returns the value to persist for secret.
	Hash(secret string) (string, error)

	// Compare reports whether candidate matches the stored value.
	Compare(stored, candidate string) bool
}

// PlainHasher stores secrets as-is and compares by equality.
// This is the default and keeps the documents readable by older tooling.
type PlainHasher struct{}

// Hash returns secret unchanged.
func (PlainHasher) Hash(secret string) (string, error) {
	return secret, nil
}

// Compare is plain string equality.
func (PlainHasher) Compare(stored, candidate string) bool {
	return stored == candidate
}

// BcryptHasher stores salted bcrypt hashes.
type BcryptHasher struct {
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost
	Cost int
}

// Hash returns the bcrypt hash of secret.
func (h BcryptHasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hash), nil
}

// Compare checks candidate against a bcrypt hash.
func (BcryptHasher) Compare(stored, candidate string) bool {
	if stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
}

// randomDigits returns n decimal digits read from crypto/rand.
func randomDigits(n int) (string, error) {
	return readDigits(rand.Reader, n)
}

// readDigits maps random bytes to digits, discarding bytes of 250 and above
// so every digit is equally likely.
func readDigits(r io.Reader, n int) (string, error) {
	const digits = "0123456789"
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf[:n-len(out)]); err != nil {
			return "", fmt.Errorf("could not generate random digits: %w", err)
		}
		for _, b := range buf[:n-len(out)] {
			if b < 250 {
				out = append(out, digits[b%10])
			}
		}
	}
	return string(out), nil
}

// generateCardNumber returns "4" followed by 15 random digits, grouped by four.
func generateCardNumber() (string, error) {
	tail, err := randomDigits(15)
	if err != nil {
		return "", err
	}
	raw := "4" + tail

	var sb strings.Builder
	for i := 0; i < len(raw); i += 4 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(raw[i : i+4])
	}
	return sb.String(), nil
}

// generateCardPin returns a random 4-digit PIN.
func generateCardPin() (string, error) {
	return randomDigits(PinLength)
}

// ValidPin reports whether pin is exactly PinLength ASCII digits.
func ValidPin(pin string) bool {
	if len(pin) != PinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// ValidCardNumber reports whether number has the "dddd dddd dddd dddd" layout.
func ValidCardNumber(number string) bool {
	if len(number) != 19 {
		return false
	}
	for i := 0; i < len(number); i++ {
		c := number[i]
		if i%5 == 4 {
			if c != ' ' {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
