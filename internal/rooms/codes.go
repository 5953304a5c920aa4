package rooms

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const idLength = 6

// GenerateID returns a short random room id. Uniqueness among live rooms is
// the store's job.
func GenerateID() (string, error) {
	id := make([]byte, idLength)
	for i := range id {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		id[i] = alphabet[n.Int64()]
	}
	return string(id), nil
}
