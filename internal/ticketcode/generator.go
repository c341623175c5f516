package ticketcode

import (
	"crypto/rand"
	"errors"
	"math/big"
)

var ErrTicketCodeAllocationFailed = errors.New("ticket code allocation failed")

// CodeLength is the length of issued redemption codes.
const CodeLength = 10

// alphabet excludes 0/O/1/I so codes stay shareable over the phone.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Generator issues short collision-resistant redemption codes. Uniqueness
// is enforced by the bookings table constraint; callers regenerate on
// conflict a bounded number of times.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate() (string, error) {
	code := make([]byte, CodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}
