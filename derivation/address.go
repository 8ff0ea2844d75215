// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package derivation

import (
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/fault"
	"github.com/bitmark-inc/datastored/util"
)

// AddressLength - number of bytes in an address
const AddressLength = 32

// Address - identity of a storage slot or balance holder
//
// to convert to bytes just use address[:]
type Address [AddressLength]byte

// bit 0 of the first byte marks an address that belongs to a signing
// account; derived addresses never carry it
const signerMarker = 0x01

// domain separation tags for the address families
var (
	signerTag  = []byte("signer")
	programTag = []byte("program")
)

// AddressFromBytes - convert and validate a binary byte slice to an address
func AddressFromBytes(buffer []byte) (Address, error) {
	address := Address{}
	if AddressLength != len(buffer) {
		return address, fault.ErrCannotDecodeAddress
	}
	copy(address[:], buffer)
	return address, nil
}

// AddressFromBase58 - convert a Base58 string to an address
func AddressFromBase58(addressBase58Encoded string) (Address, error) {
	return AddressFromBytes(util.FromBase58(addressBase58Encoded))
}

// AddressFromAccount - the address holding an account's balance
//
// accounts hash into their own tagged family and always carry the
// signer marker, so no derived address can alias a signing identity
func AddressFromAccount(acc *account.Account) Address {
	address := Address(sha3.Sum256(append(signerTag, acc.Bytes()...)))
	address[0] |= signerMarker
	return address
}

// ProgramAddress - the identity of an owning program
func ProgramAddress(name string) Address {
	address := Address(sha3.Sum256(append(programTag, name...)))
	address[0] &^= signerMarker
	return address
}

// IsZero - check for the all-zero address
func (address Address) IsZero() bool {
	return Address{} == address
}

// IsSignerAddress - check for the signer marker
//
// addresses carrying it belong to the account balance family and can
// never hold a storage slot
func (address Address) IsSignerAddress() bool {
	return 0 != address[0]&signerMarker
}

// String - convert an address to Base58 for use by the fmt package (for %s)
func (address Address) String() string {
	return util.ToBase58(address[:])
}

// GoString - convert an address for use by the fmt package (for %#v)
func (address Address) GoString() string {
	return "<address:" + util.ToBase58(address[:]) + ">"
}

// Scan - convert a Base58 representation to an address for use by
// the format package scan routines
func (address *Address) Scan(state fmt.ScanState, verb rune) error {
	token, err := state.Token(true, func(c rune) bool {
		if c >= '1' && c <= '9' {
			return true
		}
		if c >= 'A' && c <= 'Z' && 'I' != c && 'O' != c {
			return true
		}
		if c >= 'a' && c <= 'z' && 'l' != c {
			return true
		}
		return false
	})
	if nil != err {
		return err
	}

	a, err := AddressFromBase58(string(token))
	if nil != err {
		return err
	}
	*address = a
	return nil
}

// MarshalText - convert address to Base58 text
func (address Address) MarshalText() ([]byte, error) {
	return []byte(util.ToBase58(address[:])), nil
}

// UnmarshalText - convert Base58 text into an address
func (address *Address) UnmarshalText(s []byte) error {
	a, err := AddressFromBase58(string(s))
	if nil != err {
		return err
	}
	*address = a
	return nil
}
