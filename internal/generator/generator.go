// Package generator provides the public-identifier strategies users can
// pick for their uploads. Strategies are looked up by name once per upload;
// unknown names fall back to the random strategy.
package generator

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Generator produces a public identifier of roughly the requested length.
// Some strategies (uuid, timestamp) have a fixed natural length and ignore
// the hint.
type Generator func(length int) (string, error)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Random returns a cryptographically random alphanumeric identifier.
func Random(length int) (string, error) {
	if length <= 0 {
		length = 8
	}
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("generate random id: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// UUID returns a random UUIDv4 string. The length hint is ignored.
func UUID(length int) (string, error) {
	return uuid.NewString(), nil
}

// Timestamp returns the current Unix time in milliseconds. Collisions are
// possible for simultaneous uploads; callers retry on a uniqueness conflict.
func Timestamp(length int) (string, error) {
	return strconv.FormatInt(time.Now().UnixMilli(), 10), nil
}

// ByName resolves a strategy by its stored name. Unknown names resolve to
// Random so a stale user record never breaks uploads.
func ByName(name string) Generator {
	switch name {
	case "uuid":
		return UUID
	case "timestamp":
		return Timestamp
	default:
		return Random
	}
}
