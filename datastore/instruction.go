// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package datastore - the five operation lifecycle of a managed data
// record
//
// An inbound request is a packed instruction: a Varint64 operation
// tag, the fields of the operation in struct order, and the
// authority's signature over the preceding bytes last.  The processor
// validates the signature, lifecycle state, authority and derived
// address binding before issuing any mutating storage call, so a
// rejected operation leaves every record exactly as it was.
package datastore

import (
	"encoding/hex"

	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/metadata"
	"github.com/bitmark-inc/datastored/util"
)

// TagType - type code for instructions
type TagType uint64

// enumerate the possible instruction tags
// this is encoded a Varint64 at start of "Packed"
const (
	// null marks beginning of list - not used as an instruction
	NullTag = TagType(iota)

	// valid instructions
	InitializeTag      = TagType(iota) // create the record pair
	UpdateTag          = TagType(iota) // replace data record contents
	UpdateAuthorityTag = TagType(iota) // hand over control
	FinalizeTag        = TagType(iota) // freeze data record contents
	CloseTag           = TagType(iota) // destroy the pair, refund escrow

	// this item must be last
	InvalidTag = TagType(iota)
)

// Packed - packed instructions are just a byte slice
type Packed []byte

// Instruction - generic instruction interface
type Instruction interface {
	Pack(signer *account.Account) (Packed, error)
	apply(processor *Processor) (*Result, error)
}

// byte sizes for various fields
const (
	maxSignatureLength = 1024

	// MaximumDataLength - upper bound on a data record size
	MaximumDataLength = 1048576
)

// Initialize - create a bound data record / metadata record pair
//
// a zero DataRecord address asks the runtime to pick a fresh one
type Initialize struct {
	Authority   *account.Account   `json:"authority"`   // base58
	DataRecord  derivation.Address `json:"dataRecord"`  // base58
	Dynamic     bool               `json:"dynamic"`     // record may be resized later
	DataType    metadata.DataType  `json:"dataType"`    // caller declared category
	InitialSize uint64             `json:"initialSize"` // zero filled size
	Signature   account.Signature  `json:"signature"`   // hex
}

// Update - replace the data record contents
//
// a different sized payload is a resize and requires a dynamic record
type Update struct {
	Authority  *account.Account   `json:"authority"`  // base58
	DataRecord derivation.Address `json:"dataRecord"` // base58
	DataType   metadata.DataType  `json:"dataType"`   // may re-declare the category
	NewData    []byte             `json:"newData"`    // base64
	Signature  account.Signature  `json:"signature"`  // hex
}

// UpdateAuthority - hand control of the record to another account
type UpdateAuthority struct {
	Authority    *account.Account   `json:"authority"`    // base58
	DataRecord   derivation.Address `json:"dataRecord"`   // base58
	NewAuthority *account.Account   `json:"newAuthority"` // base58
	Signature    account.Signature  `json:"signature"`    // hex
}

// Finalize - freeze the data record contents forever
type Finalize struct {
	Authority  *account.Account   `json:"authority"`  // base58
	DataRecord derivation.Address `json:"dataRecord"` // base58
	Signature  account.Signature  `json:"signature"`  // hex
}

// Close - destroy both records and refund the escrowed balance
type Close struct {
	Authority  *account.Account   `json:"authority"`  // base58
	DataRecord derivation.Address `json:"dataRecord"` // base58
	Signature  account.Signature  `json:"signature"`  // hex
}

// Type - returns the instruction tag code
func (record Packed) Type() TagType {
	recordType, n := util.FromVarint64(record)
	if 0 == n {
		return NullTag
	}
	return TagType(recordType)
}

// RecordName - returns the name of an instruction as a string
func RecordName(record interface{}) (string, bool) {
	switch record.(type) {
	case *Initialize, Initialize:
		return "Initialize", true

	case *Update, Update:
		return "Update", true

	case *UpdateAuthority, UpdateAuthority:
		return "UpdateAuthority", true

	case *Finalize, Finalize:
		return "Finalize", true

	case *Close, Close:
		return "Close", true

	default:
		return "*unknown*", false
	}
}

// MarshalText - convert a packed to its hex JSON form
func (record Packed) MarshalText() ([]byte, error) {
	size := hex.EncodedLen(len(record))
	b := make([]byte, size)
	hex.Encode(b, record)
	return b, nil
}

// UnmarshalText - convert a packed from its hex JSON form
func (record *Packed) UnmarshalText(s []byte) error {
	size := hex.DecodedLen(len(s))
	*record = make([]byte, size)
	_, err := hex.Decode(*record, s)
	return err
}
