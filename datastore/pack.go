// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package datastore

import (
	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/fault"
	"github.com/bitmark-inc/datastored/util"
)

// Pack - pack an Initialize instruction
//
// returns the unsigned message on signature failure so a caller can
// sign it and retry
func (ins *Initialize) Pack(signer *account.Account) (Packed, error) {
	if nil == ins.Authority || nil == signer {
		return nil, fault.ErrInvalidOwnerOrSigner
	}
	if len(ins.Signature) > maxSignatureLength {
		return nil, fault.ErrSignatureTooLong
	}
	if !ins.DataType.IsValid() {
		return nil, fault.ErrInvalidDataType
	}
	if ins.InitialSize > MaximumDataLength {
		return nil, fault.ErrDataTooLong
	}

	// concatenate bytes
	message := util.ToVarint64(uint64(InitializeTag))
	message = appendAccount(message, ins.Authority)
	message = appendAddress(message, ins.DataRecord)
	message = appendBool(message, ins.Dynamic)
	message = append(message, byte(ins.DataType))
	message = appendUint64(message, ins.InitialSize)

	// signature
	err := signer.CheckSignature(message, ins.Signature)
	if nil != err {
		return message, err
	}

	// Signature Last
	return appendBytes(message, ins.Signature), nil
}

// Pack - pack an Update instruction
//
// returns the unsigned message on signature failure so a caller can
// sign it and retry
func (ins *Update) Pack(signer *account.Account) (Packed, error) {
	if nil == ins.Authority || nil == signer {
		return nil, fault.ErrInvalidOwnerOrSigner
	}
	if len(ins.Signature) > maxSignatureLength {
		return nil, fault.ErrSignatureTooLong
	}
	if !ins.DataType.IsValid() {
		return nil, fault.ErrInvalidDataType
	}
	if len(ins.NewData) > MaximumDataLength {
		return nil, fault.ErrDataTooLong
	}

	// concatenate bytes
	message := util.ToVarint64(uint64(UpdateTag))
	message = appendAccount(message, ins.Authority)
	message = appendAddress(message, ins.DataRecord)
	message = append(message, byte(ins.DataType))
	message = appendBytes(message, ins.NewData)

	// signature
	err := signer.CheckSignature(message, ins.Signature)
	if nil != err {
		return message, err
	}

	// Signature Last
	return appendBytes(message, ins.Signature), nil
}

// Pack - pack an UpdateAuthority instruction
//
// returns the unsigned message on signature failure so a caller can
// sign it and retry
func (ins *UpdateAuthority) Pack(signer *account.Account) (Packed, error) {
	if nil == ins.Authority || nil == ins.NewAuthority || nil == signer {
		return nil, fault.ErrInvalidOwnerOrSigner
	}
	if len(ins.Signature) > maxSignatureLength {
		return nil, fault.ErrSignatureTooLong
	}

	// concatenate bytes
	message := util.ToVarint64(uint64(UpdateAuthorityTag))
	message = appendAccount(message, ins.Authority)
	message = appendAddress(message, ins.DataRecord)
	message = appendAccount(message, ins.NewAuthority)

	// signature
	err := signer.CheckSignature(message, ins.Signature)
	if nil != err {
		return message, err
	}

	// Signature Last
	return appendBytes(message, ins.Signature), nil
}

// Pack - pack a Finalize instruction
//
// returns the unsigned message on signature failure so a caller can
// sign it and retry
func (ins *Finalize) Pack(signer *account.Account) (Packed, error) {
	if nil == ins.Authority || nil == signer {
		return nil, fault.ErrInvalidOwnerOrSigner
	}
	if len(ins.Signature) > maxSignatureLength {
		return nil, fault.ErrSignatureTooLong
	}

	// concatenate bytes
	message := util.ToVarint64(uint64(FinalizeTag))
	message = appendAccount(message, ins.Authority)
	message = appendAddress(message, ins.DataRecord)

	// signature
	err := signer.CheckSignature(message, ins.Signature)
	if nil != err {
		return message, err
	}

	// Signature Last
	return appendBytes(message, ins.Signature), nil
}

// Pack - pack a Close instruction
//
// returns the unsigned message on signature failure so a caller can
// sign it and retry
func (ins *Close) Pack(signer *account.Account) (Packed, error) {
	if nil == ins.Authority || nil == signer {
		return nil, fault.ErrInvalidOwnerOrSigner
	}
	if len(ins.Signature) > maxSignatureLength {
		return nil, fault.ErrSignatureTooLong
	}

	// concatenate bytes
	message := util.ToVarint64(uint64(CloseTag))
	message = appendAccount(message, ins.Authority)
	message = appendAddress(message, ins.DataRecord)

	// signature
	err := signer.CheckSignature(message, ins.Signature)
	if nil != err {
		return message, err
	}

	// Signature Last
	return appendBytes(message, ins.Signature), nil
}

// pack helpers
// ------------

// append a single bool as one byte
func appendBool(buffer Packed, value bool) Packed {
	b := byte(0)
	if value {
		b = 1
	}
	return append(buffer, b)
}

// append a Varint64 value
func appendUint64(buffer Packed, value uint64) Packed {
	valueBytes := util.ToVarint64(value)
	buffer = append(buffer, valueBytes...)
	return buffer
}

// append the key variant prefixed account bytes, length prefixed
func appendAccount(buffer Packed, address *account.Account) Packed {
	data := address.Bytes()
	buffer = appendUint64(buffer, uint64(len(data)))
	buffer = append(buffer, data...)
	return buffer
}

// append a fixed 32 byte address, length prefixed
func appendAddress(buffer Packed, address derivation.Address) Packed {
	buffer = appendUint64(buffer, derivation.AddressLength)
	buffer = append(buffer, address[:]...)
	return buffer
}

// append a counted byte sequence
func appendBytes(buffer Packed, data []byte) Packed {
	length := util.ToVarint64(uint64(len(data)))
	buffer = append(buffer, length...)
	buffer = append(buffer, data...)
	return buffer
}
