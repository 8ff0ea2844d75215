// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package datastore_test

import (
	"reflect"
	"testing"

	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/datastore"
	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/fault"
	"github.com/bitmark-inc/datastored/metadata"
)

// generate a fresh key pair for signing test instructions
func makeKey(t *testing.T) *account.PrivateKey {
	key, err := account.NewED25519PrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}
	return key
}

// pack once to obtain the unsigned message, sign it and attach the
// signature through the callback
func signInstruction(t *testing.T, key *account.PrivateKey, ins datastore.Instruction, attach func(account.Signature)) {
	message, err := ins.Pack(key.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack error: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
	attach(key.Sign(message))
}

// pack then unpack every instruction type and compare structures
func TestPackUnpackRoundTrip(t *testing.T) {
	owner := makeKey(t)
	successor := makeKey(t)
	dataRecord := derivation.ProgramAddress("round trip data record")

	instructions := []datastore.Instruction{
		&datastore.Initialize{
			Authority:   owner.Account(),
			DataRecord:  dataRecord,
			Dynamic:     true,
			DataType:    metadata.TypeJSON,
			InitialSize: 128,
		},
		&datastore.Update{
			Authority:  owner.Account(),
			DataRecord: dataRecord,
			DataType:   metadata.TypeCustom,
			NewData:    []byte("replacement contents"),
		},
		&datastore.UpdateAuthority{
			Authority:    owner.Account(),
			DataRecord:   dataRecord,
			NewAuthority: successor.Account(),
		},
		&datastore.Finalize{
			Authority:  owner.Account(),
			DataRecord: dataRecord,
		},
		&datastore.Close{
			Authority:  owner.Account(),
			DataRecord: dataRecord,
		},
	}

	for i, ins := range instructions {
		name, ok := datastore.RecordName(ins)
		if !ok {
			t.Fatalf("%d: unknown instruction type", i)
		}

		switch ins := ins.(type) {
		case *datastore.Initialize:
			signInstruction(t, owner, ins, func(s account.Signature) { ins.Signature = s })
		case *datastore.Update:
			signInstruction(t, owner, ins, func(s account.Signature) { ins.Signature = s })
		case *datastore.UpdateAuthority:
			signInstruction(t, owner, ins, func(s account.Signature) { ins.Signature = s })
		case *datastore.Finalize:
			signInstruction(t, owner, ins, func(s account.Signature) { ins.Signature = s })
		case *datastore.Close:
			signInstruction(t, owner, ins, func(s account.Signature) { ins.Signature = s })
		}

		packed, err := ins.Pack(owner.Account())
		if nil != err {
			t.Fatalf("%s: pack error: %s", name, err)
		}

		unpacked, err := packed.Unpack()
		if nil != err {
			t.Fatalf("%s: unpack error: %s", name, err)
		}
		if !reflect.DeepEqual(ins, unpacked) {
			t.Errorf("%s: unpack: %+v  expected: %+v", name, unpacked, ins)
		}
	}
}

// corrupting any byte of the signed portion must fail the re-pack
// signature check, corrupting the framing must fail the unpack
func TestUnpackRejectsTampering(t *testing.T) {
	owner := makeKey(t)

	ins := &datastore.Update{
		Authority:  owner.Account(),
		DataRecord: derivation.ProgramAddress("tamper target"),
		DataType:   metadata.TypeImage,
		NewData:    []byte{0xde, 0xad, 0xbe, 0xef},
	}
	signInstruction(t, owner, ins, func(s account.Signature) { ins.Signature = s })
	packed, err := ins.Pack(owner.Account())
	if nil != err {
		t.Fatalf("pack error: %s", err)
	}

	// trailing garbage
	extended := append(append(datastore.Packed{}, packed...), 0x00)
	if _, err := extended.Unpack(); fault.ErrMalformedInstruction != err {
		t.Errorf("trailing byte: actual: %v  expected: %v", err, fault.ErrMalformedInstruction)
	}

	// truncation anywhere must not unpack cleanly into the same record
	for i := 1; i < len(packed); i += 1 {
		unpacked, err := packed[:i].Unpack()
		if nil == err && reflect.DeepEqual(unpacked, ins) {
			t.Errorf("truncation at %d unpacked to the original record", i)
		}
	}

	// a flipped payload byte survives the unpack but fails the
	// signature on re-pack, the first NewData byte sits just before
	// the counted signature
	flipped := append(datastore.Packed{}, packed...)
	flipped[len(flipped)-69] ^= 0x40
	unpacked, err := flipped.Unpack()
	if nil != err {
		t.Fatalf("flipped unpack error: %s", err)
	}
	if _, err := unpacked.Pack(owner.Account()); fault.ErrInvalidSignature != err {
		t.Errorf("flipped pack: actual: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
}

// a zero length signature is a valid wire form, rejection is the
// processor's job so it can answer with the precise error
func TestUnpackAllowsMissingSignature(t *testing.T) {
	owner := makeKey(t)

	ins := &datastore.Finalize{
		Authority:  owner.Account(),
		DataRecord: derivation.ProgramAddress("unsigned"),
	}
	message, err := ins.Pack(owner.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack error: %v  expected: %v", err, fault.ErrInvalidSignature)
	}

	// append an explicit zero length signature
	packed := append(datastore.Packed{}, message...)
	packed = append(packed, 0x00)

	unpacked, err := packed.Unpack()
	if nil != err {
		t.Fatalf("unpack error: %s", err)
	}
	finalize, ok := unpacked.(*datastore.Finalize)
	if !ok {
		t.Fatalf("unpack type: %T  expected: *datastore.Finalize", unpacked)
	}
	if 0 != len(finalize.Signature) {
		t.Errorf("signature: %x  expected: empty", finalize.Signature)
	}

	if tag := packed.Type(); datastore.FinalizeTag != tag {
		t.Errorf("tag: %d  expected: %d", tag, datastore.FinalizeTag)
	}
}

// oversize payloads are refused at pack time
func TestPackRejectsOversizeData(t *testing.T) {
	owner := makeKey(t)

	ins := &datastore.Update{
		Authority:  owner.Account(),
		DataRecord: derivation.ProgramAddress("oversize"),
		DataType:   metadata.TypeCustom,
		NewData:    make([]byte, datastore.MaximumDataLength+1),
	}
	if _, err := ins.Pack(owner.Account()); fault.ErrDataTooLong != err {
		t.Errorf("oversize data: actual: %v  expected: %v", err, fault.ErrDataTooLong)
	}

	size := &datastore.Initialize{
		Authority:   owner.Account(),
		DataRecord:  derivation.Address{},
		DataType:    metadata.TypeCustom,
		InitialSize: datastore.MaximumDataLength + 1,
	}
	if _, err := size.Pack(owner.Account()); fault.ErrDataTooLong != err {
		t.Errorf("oversize initial size: actual: %v  expected: %v", err, fault.ErrDataTooLong)
	}
}
