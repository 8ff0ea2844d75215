// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package derivation - deterministic binding of a metadata record to
// its data record
//
// The address of a metadata record is never stored as a trusted
// pointer: it is recomputed from the data record address and the
// owning program identity on every operation and compared with the
// account actually presented.  The stored bump nonce makes the
// reconstruction exact.
package derivation

import (
	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/datastored/fault"
)

// seed prefix binding the metadata address family
var metadataSeed = []byte("metadata")

// Derive - compute the metadata record address for a data record
//
// scans bump values downward from 255 and returns the first
// candidate outside the signing address family together with the
// bump that produced it
func Derive(dataRecord Address, ownerProgram Address) (Address, byte, error) {

	for bump := 255; bump >= 0; bump -= 1 {
		candidate := compute(dataRecord, ownerProgram, byte(bump))
		if 0 == candidate[0]&signerMarker {
			return candidate, byte(bump), nil
		}
	}

	// cannot happen: candidates are uniformly distributed so a run
	// of 256 marked digests is beyond reach, but fail closed anyway
	return Address{}, 0, fault.ErrDerivationImpossible
}

// DeriveWithBump - recompute the metadata record address for a
// stored bump
//
// fails if the bump lands the candidate inside the signing address
// family, such a bump can never have been issued by Derive
func DeriveWithBump(dataRecord Address, ownerProgram Address, bump byte) (Address, error) {
	candidate := compute(dataRecord, ownerProgram, bump)
	if 0 != candidate[0]&signerMarker {
		return Address{}, fault.ErrDerivationMismatch
	}
	return candidate, nil
}

// Verify - check that an address is the derived address for a data
// record and bump
//
// any mismatch is fault.ErrDerivationMismatch: a forged or stale
// address, a tampered bump, or a retargeted data record reference
func Verify(derived Address, dataRecord Address, ownerProgram Address, bump byte) error {
	candidate, err := DeriveWithBump(dataRecord, ownerProgram, bump)
	if nil != err {
		return err
	}
	if candidate != derived {
		return fault.ErrDerivationMismatch
	}
	return nil
}

// the digest over all seed inputs
func compute(dataRecord Address, ownerProgram Address, bump byte) Address {
	message := make([]byte, 0, len(metadataSeed)+2*AddressLength+1)
	message = append(message, metadataSeed...)
	message = append(message, dataRecord[:]...)
	message = append(message, ownerProgram[:]...)
	message = append(message, bump)
	return Address(sha3.Sum256(message))
}
