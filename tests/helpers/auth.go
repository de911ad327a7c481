package helpers

import (
	"crypto/rand"
	"math/big"
	"testing"
	"time"

	"github.com/localnerve/formsdb/internal/services"
)

// TestSecret signs the tokens of in-process handler tests.
const TestSecret = "formsdb-unit-secret"

func randInt(max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}

// RandomSubject generates a 12 character subject id for a test user
func RandomSubject() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	subject := make([]byte, 12)
	for i := range subject {
		subject[i] = alphabet[randInt(len(alphabet))]
	}
	return "user-" + string(subject)
}

// IssueToken signs a bearer token for userID with secret
func IssueToken(t *testing.T, secret, userID string) string {
	t.Helper()
	token, err := services.NewJWTAuthenticator(secret).Issue(services.Identity{
		ID:    userID,
		Email: userID + "@example.com",
	}, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}
