// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package datastore

import (
	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/fault"
	"github.com/bitmark-inc/datastored/metadata"
	"github.com/bitmark-inc/datastored/util"
)

// Unpack - turn a byte slice into an instruction
//
// must cleanly unpack the whole slice: stray bytes after the
// signature are rejected
//
// a zero length signature unpacks successfully so the processor can
// report it as missing rather than malformed
func (record Packed) Unpack() (Instruction, error) {

	recordType, n := util.FromVarint64(record)
	if 0 == n {
		return nil, fault.ErrMalformedInstruction
	}

	switch TagType(recordType) {

	case InitializeTag:
		authority, n, err := unpackAccount(record, n)
		if nil != err {
			return nil, err
		}
		dataRecord, n, err := unpackAddress(record, n)
		if nil != err {
			return nil, err
		}
		dynamic, n, err := unpackBool(record, n)
		if nil != err {
			return nil, err
		}
		dataType, n, err := unpackByte(record, n)
		if nil != err {
			return nil, err
		}
		initialSize, n, err := unpackUint64(record, n)
		if nil != err {
			return nil, err
		}
		signature, n, err := unpackSignature(record, n)
		if nil != err {
			return nil, err
		}
		if n != len(record) {
			return nil, fault.ErrMalformedInstruction
		}
		return &Initialize{
			Authority:   authority,
			DataRecord:  dataRecord,
			Dynamic:     dynamic,
			DataType:    metadata.DataType(dataType),
			InitialSize: initialSize,
			Signature:   signature,
		}, nil

	case UpdateTag:
		authority, n, err := unpackAccount(record, n)
		if nil != err {
			return nil, err
		}
		dataRecord, n, err := unpackAddress(record, n)
		if nil != err {
			return nil, err
		}
		dataType, n, err := unpackByte(record, n)
		if nil != err {
			return nil, err
		}
		newData, n, err := unpackBytes(record, n, MaximumDataLength)
		if nil != err {
			return nil, err
		}
		signature, n, err := unpackSignature(record, n)
		if nil != err {
			return nil, err
		}
		if n != len(record) {
			return nil, fault.ErrMalformedInstruction
		}
		return &Update{
			Authority:  authority,
			DataRecord: dataRecord,
			DataType:   metadata.DataType(dataType),
			NewData:    newData,
			Signature:  signature,
		}, nil

	case UpdateAuthorityTag:
		authority, n, err := unpackAccount(record, n)
		if nil != err {
			return nil, err
		}
		dataRecord, n, err := unpackAddress(record, n)
		if nil != err {
			return nil, err
		}
		newAuthority, n, err := unpackAccount(record, n)
		if nil != err {
			return nil, err
		}
		signature, n, err := unpackSignature(record, n)
		if nil != err {
			return nil, err
		}
		if n != len(record) {
			return nil, fault.ErrMalformedInstruction
		}
		return &UpdateAuthority{
			Authority:    authority,
			DataRecord:   dataRecord,
			NewAuthority: newAuthority,
			Signature:    signature,
		}, nil

	case FinalizeTag:
		authority, n, err := unpackAccount(record, n)
		if nil != err {
			return nil, err
		}
		dataRecord, n, err := unpackAddress(record, n)
		if nil != err {
			return nil, err
		}
		signature, n, err := unpackSignature(record, n)
		if nil != err {
			return nil, err
		}
		if n != len(record) {
			return nil, fault.ErrMalformedInstruction
		}
		return &Finalize{
			Authority:  authority,
			DataRecord: dataRecord,
			Signature:  signature,
		}, nil

	case CloseTag:
		authority, n, err := unpackAccount(record, n)
		if nil != err {
			return nil, err
		}
		dataRecord, n, err := unpackAddress(record, n)
		if nil != err {
			return nil, err
		}
		signature, n, err := unpackSignature(record, n)
		if nil != err {
			return nil, err
		}
		if n != len(record) {
			return nil, fault.ErrMalformedInstruction
		}
		return &Close{
			Authority:  authority,
			DataRecord: dataRecord,
			Signature:  signature,
		}, nil

	default:
	}
	return nil, fault.ErrMalformedInstruction
}

// unpack helpers
// --------------

// a counted byte sequence with an upper bound on its length
func unpackBytes(record Packed, n int, limit uint64) ([]byte, int, error) {
	length, lengthBytes := util.FromVarint64(record[n:])
	if 0 == lengthBytes || length > limit {
		return nil, 0, fault.ErrMalformedInstruction
	}
	n += lengthBytes
	if uint64(len(record)-n) < length {
		return nil, 0, fault.ErrMalformedInstruction
	}
	data := make([]byte, length)
	copy(data, record[n:])
	n += int(length)
	return data, n, nil
}

// a key variant prefixed account, length prefixed
func unpackAccount(record Packed, n int) (*account.Account, int, error) {
	data, n, err := unpackBytes(record, n, maxSignatureLength)
	if nil != err {
		return nil, 0, err
	}
	unpacked, err := account.AccountFromBytes(data)
	if nil != err {
		return nil, 0, fault.ErrMalformedInstruction
	}
	return unpacked, n, nil
}

// a fixed 32 byte address, length prefixed
func unpackAddress(record Packed, n int) (derivation.Address, int, error) {
	data, n, err := unpackBytes(record, n, derivation.AddressLength)
	if nil != err {
		return derivation.Address{}, 0, err
	}
	address, err := derivation.AddressFromBytes(data)
	if nil != err {
		return derivation.Address{}, 0, fault.ErrMalformedInstruction
	}
	return address, n, nil
}

// a trailing signature, may be empty
func unpackSignature(record Packed, n int) (account.Signature, int, error) {
	data, n, err := unpackBytes(record, n, maxSignatureLength)
	if nil != err {
		return nil, 0, err
	}
	return account.Signature(data), n, nil
}

func unpackByte(record Packed, n int) (byte, int, error) {
	if n >= len(record) {
		return 0, 0, fault.ErrMalformedInstruction
	}
	return record[n], n + 1, nil
}

func unpackBool(record Packed, n int) (bool, int, error) {
	b, n, err := unpackByte(record, n)
	if nil != err {
		return false, 0, err
	}
	if b > 1 {
		return false, 0, fault.ErrMalformedInstruction
	}
	return 1 == b, n, nil
}

func unpackUint64(record Packed, n int) (uint64, int, error) {
	value, valueBytes := util.FromVarint64(record[n:])
	if 0 == valueBytes {
		return 0, 0, fault.ErrMalformedInstruction
	}
	return value, n + valueBytes, nil
}
