// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account_test

import (
	"bytes"
	"testing"

	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/fault"
	"github.com/bitmark-inc/datastored/util"
)

// test accounts round trip through Base58 and binary forms
func TestAccountRoundTrip(t *testing.T) {

	privateKey, err := account.NewED25519PrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}

	acc := privateKey.Account()

	base58Text := acc.String()
	decoded, err := account.AccountFromBase58(base58Text)
	if nil != err {
		t.Fatalf("base58 decode error: %s", err)
	}
	if !bytes.Equal(decoded.Bytes(), acc.Bytes()) {
		t.Errorf("base58 round trip: actual: %x  expected: %x", decoded.Bytes(), acc.Bytes())
	}
	if !decoded.IsTesting() {
		t.Error("test flag lost in round trip")
	}

	fromBytes, err := account.AccountFromBytes(acc.Bytes())
	if nil != err {
		t.Fatalf("bytes decode error: %s", err)
	}
	if !bytes.Equal(fromBytes.PublicKeyBytes(), acc.PublicKeyBytes()) {
		t.Errorf("bytes round trip: actual: %x  expected: %x", fromBytes.PublicKeyBytes(), acc.PublicKeyBytes())
	}
}

// a corrupted checksum must be detected
func TestAccountChecksum(t *testing.T) {

	privateKey, err := account.NewED25519PrivateKey(false)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}

	buffer := util.FromBase58(privateKey.Account().String())
	buffer[len(buffer)-1] ^= 0xff

	_, err = account.AccountFromBase58(util.ToBase58(buffer))
	if fault.ErrChecksumMismatch != err {
		t.Errorf("checksum: actual: %v  expected: %v", err, fault.ErrChecksumMismatch)
	}
}

// signatures must verify only against the signing account
func TestSignatures(t *testing.T) {

	privateKey, err := account.NewED25519PrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}
	otherKey, err := account.NewED25519PrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}

	message := []byte("arbitrary record contents")
	signature := privateKey.Sign(message)

	if err := privateKey.Account().CheckSignature(message, signature); nil != err {
		t.Errorf("check signature error: %s", err)
	}

	if err := otherKey.Account().CheckSignature(message, signature); fault.ErrInvalidSignature != err {
		t.Errorf("wrong account: actual: %v  expected: %v", err, fault.ErrInvalidSignature)
	}

	if err := privateKey.Account().CheckSignature(message, signature[:16]); fault.ErrInvalidSignature != err {
		t.Errorf("short signature: actual: %v  expected: %v", err, fault.ErrInvalidSignature)
	}

	message[0] ^= 0x01
	if err := privateKey.Account().CheckSignature(message, signature); fault.ErrInvalidSignature != err {
		t.Errorf("tampered message: actual: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
}

// private keys round trip through their Base58 form
func TestPrivateKeyRoundTrip(t *testing.T) {

	privateKey, err := account.NewED25519PrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}

	decoded, err := account.PrivateKeyFromBase58(privateKey.String())
	if nil != err {
		t.Fatalf("base58 decode error: %s", err)
	}
	if !bytes.Equal(decoded.PrivateKeyBytes(), privateKey.PrivateKeyBytes()) {
		t.Error("private key round trip failed")
	}

	// a public account string is not a private key
	_, err = account.PrivateKeyFromBase58(privateKey.Account().String())
	if fault.ErrNotPrivateKey != err {
		t.Errorf("public as private: actual: %v  expected: %v", err, fault.ErrNotPrivateKey)
	}
}
