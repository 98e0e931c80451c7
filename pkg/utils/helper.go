package utils

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

const refAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomSuffix(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = refAlphabet[rand.Intn(len(refAlphabet))]
	}
	return string(b)
}

// GenerateBookingReference creates a human-readable booking reference.
// Format: LOC-YYYYMMDD-XXXX
func GenerateBookingReference() string {
	return fmt.Sprintf("LOC-%s-%s", time.Now().Format("20060102"), randomSuffix(4))
}

// GeneratePaymentReference creates a unique payment reference.
// Format: PAY + YYMM + random suffix
func GeneratePaymentReference() string {
	return fmt.Sprintf("PAY%s%s", time.Now().Format("0601"), randomSuffix(6))
}

// GenerateRefundReference creates a refund reference tied to nothing but time.
// Format: REF + YYMM + random suffix
func GenerateRefundReference() string {
	return fmt.Sprintf("REF%s%s", time.Now().Format("0601"), randomSuffix(6))
}
