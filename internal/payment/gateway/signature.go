package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Signature computes the webhook signature over order id, status code and
// gross amount with the merchant server key appended.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// ValidSignature compares a candidate signature in constant time.
func ValidSignature(orderID, statusCode, grossAmount, serverKey, candidate string) bool {
	want := Signature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(candidate)) == 1
}
