package testutil

import (
	"math/rand"

	"github.com/google/uuid"
)

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeFilingID generates a DART receipt number: filing date plus a
// six digit serial.
//
// Example usage:
//
//	id := testutil.MakeFilingID()
//	// Returns: "20240110004821"
func MakeFilingID() string {
	return "20240110" + randomDigits(6)
}

func randomDigits(length int) string {
	const charset = "0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
