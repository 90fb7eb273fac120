package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// RandomHex generates a random hexadecimal string of n bytes
func RandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateProxyCredential mints a username/password pair for a userpass
// proxy credential. The username is short enough to paste into proxy
// managers; the password carries the entropy.
func GenerateProxyCredential() (username, password string, err error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	username = "u" + id[:10]
	password, err = RandomHex(12)
	return username, password, err
}
