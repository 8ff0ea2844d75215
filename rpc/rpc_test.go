// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/datastore"
	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/fault"
	"github.com/bitmark-inc/datastored/ledger"
	"github.com/bitmark-inc/datastored/metadata"
)

const testLogFile = "test.log"

var testOwnerProgram = derivation.ProgramAddress("rpc.test")

func TestMain(m *testing.M) {
	os.RemoveAll(testLogFile)
	_ = logger.Initialise(logger.Configuration{
		Directory: ".",
		File:      testLogFile,
		Size:      50000,
		Count:     10,
	})
	rc := m.Run()
	logger.Finalise()
	os.RemoveAll(testLogFile)
	os.Exit(rc)
}

// a DataStore service over a fresh in-memory store
func setupService() (*DataStore, *datastore.Processor) {
	store := ledger.NewMemoryStore()
	processor := datastore.NewProcessor(logger.New("processor"), store, testOwnerProgram)
	service := &DataStore{
		Log:       logger.New("rpc-datastore"),
		Limiter:   rate.NewLimiter(rateLimitDataStore, rateBurstDataStore),
		Processor: processor,
	}
	return service, processor
}

// sign an instruction in place
func signInstruction(t *testing.T, key *account.PrivateKey, ins datastore.Instruction, attach func(account.Signature)) {
	message, err := ins.Pack(key.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack error: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
	attach(key.Sign(message))
}

// drive the whole lifecycle through the service methods
func TestDataStoreService(t *testing.T) {
	service, processor := setupService()
	defer processor.Stop()

	key, err := account.NewED25519PrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}

	initialize := &datastore.Initialize{
		Authority:   key.Account(),
		Dynamic:     true,
		DataType:    metadata.TypeJSON,
		InitialSize: 8,
	}
	signInstruction(t, key, initialize, func(s account.Signature) { initialize.Signature = s })

	var created OperationReply
	if err := service.Initialize(initialize, &created); nil != err {
		t.Fatalf("initialize error: %s", err)
	}
	if metadata.StateActive != created.DataStatus || 0 != created.DataVersion {
		t.Errorf("initialize reply: %+v", created)
	}

	update := &datastore.Update{
		Authority:  key.Account(),
		DataRecord: created.DataRecord,
		DataType:   metadata.TypeJSON,
		NewData:    []byte(`{"a":1}`),
	}
	signInstruction(t, key, update, func(s account.Signature) { update.Signature = s })

	var updated OperationReply
	if err := service.Update(update, &updated); nil != err {
		t.Fatalf("update error: %s", err)
	}
	if 1 != updated.DataVersion {
		t.Errorf("version: %d  expected: 1", updated.DataVersion)
	}

	var read ReadReply
	if err := service.Read(&RecordArguments{DataRecord: created.DataRecord}, &read); nil != err {
		t.Fatalf("read error: %s", err)
	}
	if !bytes.Equal(read.Data, update.NewData) {
		t.Errorf("data: %s  expected: %s", read.Data, update.NewData)
	}
	if 1 != read.DataVersion || metadata.StateActive != read.DataStatus {
		t.Errorf("read reply: %+v", read)
	}

	var meta MetadataReply
	if err := service.Metadata(&RecordArguments{DataRecord: created.DataRecord}, &meta); nil != err {
		t.Fatalf("metadata error: %s", err)
	}
	if meta.MetadataRecord != created.MetadataRecord || !meta.Metadata.Dynamic {
		t.Errorf("metadata reply: %+v", meta)
	}

	finalize := &datastore.Finalize{
		Authority:  key.Account(),
		DataRecord: created.DataRecord,
	}
	signInstruction(t, key, finalize, func(s account.Signature) { finalize.Signature = s })

	var finalized OperationReply
	if err := service.Finalize(finalize, &finalized); nil != err {
		t.Fatalf("finalize error: %s", err)
	}
	if metadata.StateFinalized != finalized.DataStatus {
		t.Errorf("finalize reply: %+v", finalized)
	}

	closeRequest := &datastore.Close{
		Authority:  key.Account(),
		DataRecord: created.DataRecord,
	}
	signInstruction(t, key, closeRequest, func(s account.Signature) { closeRequest.Signature = s })

	var closed OperationReply
	if err := service.Close(closeRequest, &closed); nil != err {
		t.Fatalf("close error: %s", err)
	}
	if !closed.Closed || 0 == closed.Refund {
		t.Errorf("close reply: %+v", closed)
	}

	// record is gone
	if err := service.Read(&RecordArguments{DataRecord: created.DataRecord}, &read); fault.ErrNotInitialised != err {
		t.Errorf("read closed: actual: %v  expected: %v", err, fault.ErrNotInitialised)
	}
}

// unsigned instructions are refused before touching the store
func TestDataStoreServiceRejectsUnsigned(t *testing.T) {
	service, processor := setupService()
	defer processor.Stop()

	key, err := account.NewED25519PrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}

	initialize := &datastore.Initialize{
		Authority:   key.Account(),
		DataType:    metadata.TypeCustom,
		InitialSize: 4,
	}
	var reply OperationReply
	if err := service.Initialize(initialize, &reply); fault.ErrSignatureMissing != err {
		t.Errorf("unsigned initialize: actual: %v  expected: %v", err, fault.ErrSignatureMissing)
	}

	if err := service.Update(nil, &reply); fault.ErrMissingParameters != err {
		t.Errorf("nil arguments: actual: %v  expected: %v", err, fault.ErrMissingParameters)
	}
}

// the wire structures JSON encode accounts as Base58 and binary as
// hex, so a json rpc client sees readable values
func TestArgumentEncoding(t *testing.T) {
	key, err := account.NewED25519PrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}

	ins := &datastore.Update{
		Authority:  key.Account(),
		DataRecord: derivation.ProgramAddress("encoding"),
		DataType:   metadata.TypeHTML,
		NewData:    []byte("<html/>"),
	}
	signInstruction(t, key, ins, func(s account.Signature) { ins.Signature = s })

	encoded, err := json.Marshal(ins)
	if nil != err {
		t.Fatalf("marshal error: %s", err)
	}

	decoded := &datastore.Update{}
	if err := json.Unmarshal(encoded, decoded); nil != err {
		t.Fatalf("unmarshal error: %s", err)
	}
	if decoded.DataRecord != ins.DataRecord {
		t.Errorf("data record: %s  expected: %s", decoded.DataRecord, ins.DataRecord)
	}
	if !bytes.Equal(decoded.Signature, ins.Signature) {
		t.Error("signature did not round trip")
	}
	if decoded.Authority.String() != ins.Authority.String() {
		t.Errorf("authority: %s  expected: %s", decoded.Authority, ins.Authority)
	}
}

// a generated self-signed pair loads and produces a stable
// fingerprint
func TestSelfSignedCertificate(t *testing.T) {
	directory, err := ioutil.TempDir("", "rpc-certificate")
	if nil != err {
		t.Fatalf("tempdir error: %s", err)
	}
	defer os.RemoveAll(directory)

	certificateFileName := filepath.Join(directory, "rpc.crt")
	keyFileName := filepath.Join(directory, "rpc.key")

	err = MakeSelfSignedCertificate("rpc", certificateFileName, keyFileName, false, nil)
	if nil != err {
		t.Fatalf("certificate generation error: %s", err)
	}

	// a second generation must not overwrite
	err = MakeSelfSignedCertificate("rpc", certificateFileName, keyFileName, false, nil)
	if fault.ErrCertificateFileExists != err {
		t.Errorf("regenerate: actual: %v  expected: %v", err, fault.ErrCertificateFileExists)
	}

	log := logger.New("certificate-test")
	tlsConfiguration, fingerprint1, err := getCertificate(log, "test", certificateFileName, keyFileName)
	if nil != err {
		t.Fatalf("load error: %s", err)
	}
	if 1 != len(tlsConfiguration.Certificates) {
		t.Fatalf("certificates: %d  expected: 1", len(tlsConfiguration.Certificates))
	}

	_, fingerprint2, err := getCertificate(log, "test", certificateFileName, keyFileName)
	if nil != err {
		t.Fatalf("reload error: %s", err)
	}
	if fingerprint1 != fingerprint2 {
		t.Error("fingerprint is not stable")
	}
}
