// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package metadata - the fixed layout metadata record
//
// This is the only code that constructs or interprets metadata record
// bytes.  Decoding fails closed: either a fully valid record is
// returned or fault.ErrMalformedMetadata, never a partially populated
// record.
package metadata

import (
	"encoding/binary"

	"golang.org/x/crypto/ed25519"

	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/fault"
)

// CurrentVersion - schema version of the packed layout
const CurrentVersion = 0x01

// fixed little-endian layout
//
//	offset  size  field
//	 0       1    schema version
//	 1       1    data_status
//	 2       1    serialization_status
//	 3       1    dynamic flag
//	 4       1    data_type
//	 5       1    bump
//	 6       1    authority key variant
//	 7       1    reserved, must be zero
//	 8       4    data_version
//	12      32    authority public key
//	44      32    data_record_ref
const (
	versionOffset       = 0
	stateOffset         = 1
	serializationOffset = 2
	dynamicOffset       = 3
	dataTypeOffset      = 4
	bumpOffset          = 5
	keyVariantOffset    = 6
	reservedOffset      = 7
	dataVersionOffset   = 8
	authorityOffset     = 12
	dataRecordOffset    = 44

	// RecordSize - total number of bytes in a packed record
	RecordSize = dataRecordOffset + derivation.AddressLength
)

// Record - the unpacked metadata record
type Record struct {
	State               DataState           `json:"dataStatus"`
	SerializationStatus SerializationStatus `json:"serializationStatus"`
	Dynamic             bool                `json:"dynamic"`
	DataType            DataType            `json:"dataType"`
	Bump                byte                `json:"bump"`
	DataVersion         uint32              `json:"dataVersion"`
	Authority           *account.Account    `json:"authority"`
	DataRecord          derivation.Address  `json:"dataRecord"`
}

// Packed - packed records are just a byte slice
type Packed []byte

// Pack - serialise a record to its fixed wire layout
func (record *Record) Pack() (Packed, error) {

	if nil == record.Authority {
		return nil, fault.ErrInvalidOwnerOrSigner
	}
	if !record.State.IsValid() || !record.SerializationStatus.IsValid() || !record.DataType.IsValid() {
		return nil, fault.ErrMalformedMetadata
	}

	// key variant byte followed by the raw public key
	authorityBytes := record.Authority.Bytes()
	if 1+ed25519.PublicKeySize != len(authorityBytes) {
		return nil, fault.ErrInvalidKeyLength
	}

	message := make(Packed, RecordSize)
	message[versionOffset] = CurrentVersion
	message[stateOffset] = byte(record.State)
	message[serializationOffset] = byte(record.SerializationStatus)
	if record.Dynamic {
		message[dynamicOffset] = 1
	}
	message[dataTypeOffset] = byte(record.DataType)
	message[bumpOffset] = record.Bump
	message[keyVariantOffset] = authorityBytes[0]
	binary.LittleEndian.PutUint32(message[dataVersionOffset:], record.DataVersion)
	copy(message[authorityOffset:], authorityBytes[1:])
	copy(message[dataRecordOffset:], record.DataRecord[:])

	return message, nil
}

// Unpack - deserialise a packed record
//
// either a fully valid record or fault.ErrMalformedMetadata
func (packed Packed) Unpack() (*Record, error) {

	if RecordSize != len(packed) {
		return nil, fault.ErrMalformedMetadata
	}
	if CurrentVersion != packed[versionOffset] {
		return nil, fault.ErrMalformedMetadata
	}

	state := DataState(packed[stateOffset])
	serialization := SerializationStatus(packed[serializationOffset])
	dataType := DataType(packed[dataTypeOffset])
	if !state.IsValid() || !serialization.IsValid() || !dataType.IsValid() {
		return nil, fault.ErrMalformedMetadata
	}

	dynamic := packed[dynamicOffset]
	if dynamic > 1 {
		return nil, fault.ErrMalformedMetadata
	}

	if 0 != packed[reservedOffset] {
		return nil, fault.ErrMalformedMetadata
	}

	authorityBytes := make([]byte, 0, 1+ed25519.PublicKeySize)
	authorityBytes = append(authorityBytes, packed[keyVariantOffset])
	authorityBytes = append(authorityBytes, packed[authorityOffset:authorityOffset+ed25519.PublicKeySize]...)
	authority, err := account.AccountFromBytes(authorityBytes)
	if nil != err {
		return nil, fault.ErrMalformedMetadata
	}

	// the authority is never empty while the record exists
	if isAllZero(packed[authorityOffset : authorityOffset+ed25519.PublicKeySize]) {
		return nil, fault.ErrMalformedMetadata
	}

	dataRecord, err := derivation.AddressFromBytes(packed[dataRecordOffset:])
	if nil != err {
		return nil, fault.ErrMalformedMetadata
	}

	return &Record{
		State:               state,
		SerializationStatus: serialization,
		Dynamic:             1 == dynamic,
		DataType:            dataType,
		Bump:                packed[bumpOffset],
		DataVersion:         binary.LittleEndian.Uint32(packed[dataVersionOffset:]),
		Authority:           authority,
		DataRecord:          dataRecord,
	}, nil
}

func isAllZero(buffer []byte) bool {
	for _, b := range buffer {
		if 0 != b {
			return false
		}
	}
	return true
}
