// Package payments implements the payment-proof verification and
// access-grant core: fee schedule lookup, durable grant storage with
// replay protection, the verifier that turns a claimed transaction into
// a grant, and the access gate consulted before a priced resource is
// released.
package payments

import "strings"

// NormalizeSubject lowercases a wallet address. Subjects are compared
// case-insensitively everywhere; normalization happens at every boundary so
// stored rows and lookups always agree.
func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}
