package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateFitID generates a fit job ID with a timestamp prefix
func GenerateFitID() string {
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("fit-%s-%s", timestamp, uuid.NewString()[:8])
}
