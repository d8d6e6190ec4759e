// Package identity derives the stable user identifier that partitions remote rows.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/gofrs/uuid/v5"
)

// MinSecretLen is the minimum secret phrase length accepted by callers.
const MinSecretLen = 6

// Digest hashes the joined credentials. A non-nil error selects the fallback hash.
type Digest func(data []byte) ([]byte, error)

// SHA256 is the primary digest.
func SHA256(data []byte) ([]byte, error) {
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// Derive returns the identifier for (username, secret) using SHA-256.
func Derive(username, secret string) string {
	return DeriveWith(SHA256, username, secret)
}

// DeriveWith derives the identifier with d, falling back to the 32-bit rolling hash
// when d is nil or fails.
func DeriveWith(d Digest, username, secret string) string {
	joined := username + ":" + secret
	if d != nil {
		if sum, err := d([]byte(joined)); err == nil && len(sum) >= 16 {
			return format(hex.EncodeToString(sum))
		}
	}
	return Fallback(username, secret)
}

// Fallback returns the identifier computed with the weak 32-bit rolling hash.
func Fallback(username, secret string) string {
	var h int32
	for _, cu := range utf16.Encode([]rune(username + ":" + secret)) {
		h = h*31 + int32(cu)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	s := strconv.FormatInt(abs, 16)
	return format(strings.Repeat("0", 32-len(s)) + s)
}

// Valid reports whether id has the UUID shape produced by Derive.
func Valid(id string) bool {
	u, err := uuid.FromString(id)
	return err == nil && u.String() == id
}

// format lays out 32+ hex chars as 8-4-4-4-12 with version nibble 4 and variant 8..b.
func format(h string) string {
	v, _ := strconv.ParseUint(h[16:17], 16, 8)
	return fmt.Sprintf("%s-%s-4%s-%x%s-%s", h[0:8], h[8:12], h[13:16], (v&0x3)|0x8, h[17:20], h[20:32])
}

// SecretLongEnough reports whether secret has at least MinSecretLen UTF-16 code units.
func SecretLongEnough(secret string) bool {
	return len(utf16.Encode([]rune(secret))) >= MinSecretLen
}
