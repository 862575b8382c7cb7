package config

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// passwordAlphabet avoids quotes, backslashes and shell metacharacters so a
// generated password is safe in SQL literals, YAML and URLs.
const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789-_"

// GeneratePassword returns a random password of length n drawn from
// crypto/rand.
func GeneratePassword(n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("password length must be positive, got %d", n)
	}

	limit := big.NewInt(int64(len(passwordAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		buf[i] = passwordAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
