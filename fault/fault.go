// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type (
	AccessError   GenericError
	ExistsError   GenericError
	InvalidError  GenericError
	NotFoundError GenericError
	ProcessError  GenericError
)

// common errors - keep in alphabetic order
var (
	ErrAlreadyInitialised     = ExistsError("already initialised")
	ErrBalanceOverflow        = ProcessError("balance overflow")
	ErrCannotDecodeAccount    = InvalidError("cannot decode account")
	ErrCannotDecodeAddress    = InvalidError("cannot decode address")
	ErrCannotDecodePrivateKey = InvalidError("cannot decode private key")
	ErrCertificateFileExists  = ExistsError("certificate file already exists")
	ErrChecksumMismatch       = ProcessError("checksum mismatch")
	ErrDataTooLong            = InvalidError("data too long")
	ErrDerivationImpossible   = ProcessError("derivation impossible")
	ErrDerivationMismatch     = InvalidError("derivation mismatch")
	ErrInsufficientBalance    = ProcessError("insufficient balance")
	ErrInvalidDataState       = InvalidError("invalid data state")
	ErrInvalidDataType        = InvalidError("invalid data type")
	ErrInvalidIPAddress       = InvalidError("invalid ip address")
	ErrInvalidKeyLength       = InvalidError("key length is invalid")
	ErrInvalidKeyType         = InvalidError("key type is invalid")
	ErrInvalidOwnerOrSigner   = InvalidError("invalid owner or signer")
	ErrInvalidSerialization   = InvalidError("invalid serialization status")
	ErrInvalidSignature       = AccessError("invalid signature")
	ErrKeyFileExists          = ExistsError("key file already exists")
	ErrMalformedInstruction   = InvalidError("malformed instruction")
	ErrMalformedMetadata      = InvalidError("malformed metadata record")
	ErrMissingParameters      = InvalidError("missing parameters")
	ErrNotActive              = ProcessError("record is not active")
	ErrNotAuthorised          = AccessError("not authorised")
	ErrNotInitialised         = NotFoundError("not initialised")
	ErrNotPrivateKey          = InvalidError("not private key")
	ErrNotPublicKey           = InvalidError("not public key")
	ErrRateLimiting           = ProcessError("rate limiting")
	ErrReservedAddress        = InvalidError("reserved address")
	ErrResizeNotPermitted     = InvalidError("resize not permitted")
	ErrSignatureMissing       = AccessError("signature is missing")
	ErrSignatureTooLong       = InvalidError("signature too long")
	ErrSlotExists             = ExistsError("storage slot already exists")
	ErrSlotNotFound           = NotFoundError("storage slot not found")
	ErrSlotSizeMismatch       = InvalidError("slot size mismatch")
	ErrVersionOverflow        = ProcessError("data version overflow")
	ErrWrongDatabaseVersion   = ProcessError("database version mismatch")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e AccessError) Error() string   { return string(e) }
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// IsErrAccess - determine if an access class error
func IsErrAccess(e error) bool { _, ok := e.(AccessError); return ok }

// IsErrExists - determine if an exists class error
func IsErrExists(e error) bool { _, ok := e.(ExistsError); return ok }

// IsErrInvalid - determine if an invalid class error
func IsErrInvalid(e error) bool { _, ok := e.(InvalidError); return ok }

// IsErrNotFound - determine if a not found class error
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }

// IsErrProcess - determine if a process class error
func IsErrProcess(e error) bool { _, ok := e.(ProcessError); return ok }
