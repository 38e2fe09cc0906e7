package tool

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// MintPaymentReference issues the opaque correlation id sent to the payment
// gateway at purchase creation. Assigned once; every gateway event joins back
// on it.
func MintPaymentReference(kind string) string {
	return fmt.Sprintf("%s-%d-%s", kind, time.Now().Unix(), uuid.Must(uuid.NewV7()).String())
}
