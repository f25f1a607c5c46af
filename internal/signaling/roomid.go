package signaling

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

	// Each fragment is 11 to 13 base-36 digits long.
	minFragment = 11
	maxFragment = 13
)

// generateRoomID returns two concatenated random base-36 fragments.
// Uniqueness against live rooms is not checked; at 22+ random base-36 digits
// a collision is not a practical concern.
func generateRoomID() (string, error) {
	var b strings.Builder
	b.Grow(2 * maxFragment)
	for i := 0; i < 2; i++ {
		if err := writeFragment(&b); err != nil {
			return "", fmt.Errorf("generate room id: %w", err)
		}
	}
	return b.String(), nil
}

func writeFragment(b *strings.Builder) error {
	extra, err := randomIndex(maxFragment - minFragment + 1)
	if err != nil {
		return err
	}
	for n := minFragment + extra; n > 0; n-- {
		i, err := randomIndex(len(base36))
		if err != nil {
			return err
		}
		b.WriteByte(base36[i])
	}
	return nil
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
