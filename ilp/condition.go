package ilp

import (
	"crypto/sha256"
	"crypto/subtle"
)

// Condition is the 32-byte SHA-256 commitment gating release of funds.
type Condition [32]byte

// Fulfillment is the 32-byte preimage that discharges a Condition.
type Fulfillment [32]byte

// Condition returns the commitment for the fulfillment.
func (f Fulfillment) Condition() Condition {
	return Condition(sha256.Sum256(f[:]))
}

// Validates reports whether the fulfillment is the preimage of the condition.
// The comparison is constant time.
func (f Fulfillment) Validates(c Condition) bool {
	digest := f.Condition()
	return subtle.ConstantTimeCompare(digest[:], c[:]) == 1
}

// PingFulfillment is the well-known fulfillment of the ping/echo protocol.
// A diagnostic Prepare addressed to the operator fulfills iff its condition
// commits to this value.
var PingFulfillment = Fulfillment([32]byte{
	'p', 'i', 'n', 'g', 'p', 'i', 'n', 'g',
	'p', 'i', 'n', 'g', 'p', 'i', 'n', 'g',
	'p', 'i', 'n', 'g', 'p', 'i', 'n', 'g',
	'p', 'i', 'n', 'g', 'p', 'i', 'n', 'g',
})

// ZeroFulfillment is the all-zero fulfillment used by locally answered
// peer-protocol responses.
var ZeroFulfillment = Fulfillment{}
