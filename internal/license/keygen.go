package license

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode returns groups blocks of size random characters joined by
// dashes. GenerateCode(2, 4) yields codes like "7KQ2-M9XA".
func GenerateCode(groups, size int) (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	parts := make([]string, groups)
	buf := make([]byte, size)
	for g := range parts {
		for i := range buf {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("generate random code: %w", err)
			}
			buf[i] = keyAlphabet[n.Int64()]
		}
		parts[g] = string(buf)
	}
	return strings.Join(parts, "-"), nil
}

// GenerateKey returns a license key such as "LF-7KQ2-M9XA-P4TD-W8NC".
func GenerateKey(prefix string) (string, error) {
	code, err := GenerateCode(4, 4)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return code, nil
	}
	return prefix + "-" + code, nil
}
