// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package datastore

import (
	"bytes"
	"math"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/fault"
	"github.com/bitmark-inc/datastored/ledger"
	"github.com/bitmark-inc/datastored/metadata"
)

// Processor - executes instructions against a ledger store
//
// all methods are safe for concurrent use, instructions are handed to
// a single apply loop so each one is applied in full before the next
// one starts
type Processor struct {
	log          *logger.L
	store        ledger.Store
	ownerProgram derivation.Address
	queue        chan processorRequest
	shutdown     chan struct{}
	done         chan struct{}
}

// Result - outcome of a successfully applied instruction
type Result struct {
	DataRecord     derivation.Address `json:"dataRecord"`     // base58
	MetadataRecord derivation.Address `json:"metadataRecord"` // base58
	DataVersion    uint32             `json:"dataVersion"`
	DataStatus     metadata.DataState `json:"dataStatus"`
	Closed         bool               `json:"closed"`
	Refund         uint64             `json:"refund"` // only set by close
}

// internal request passed to the apply loop
type processorRequest struct {
	instruction Instruction
	reply       chan processorReply
}

type processorReply struct {
	result *Result
	err    error
}

// NewProcessor - create a processor bound to a store and an owning
// program identity
func NewProcessor(log *logger.L, store ledger.Store, ownerProgram derivation.Address) *Processor {
	processor := &Processor{
		log:          log,
		store:        store,
		ownerProgram: ownerProgram,
		queue:        make(chan processorRequest),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
	}
	go processor.run()
	return processor
}

// Stop - terminate the apply loop
//
// outstanding Process calls finish first
func (processor *Processor) Stop() {
	close(processor.shutdown)
	<-processor.done
}

// the apply loop: one instruction at a time, so an instruction never
// observes the half applied state of another
func (processor *Processor) run() {
	defer close(processor.done)
loop:
	for {
		select {
		case <-processor.shutdown:
			break loop
		case request := <-processor.queue:
			result, err := request.instruction.apply(processor)
			request.reply <- processorReply{
				result: result,
				err:    err,
			}
		}
	}
}

// Process - unpack and apply a packed instruction
func (processor *Processor) Process(packed Packed) (*Result, error) {
	instruction, err := packed.Unpack()
	if nil != err {
		return nil, err
	}
	return processor.Apply(instruction)
}

// Apply - apply an already unpacked instruction
func (processor *Processor) Apply(instruction Instruction) (*Result, error) {
	name, _ := RecordName(instruction)
	processor.log.Debugf("apply: %s", name)

	reply := make(chan processorReply, 1)
	select {
	case <-processor.shutdown:
		return nil, fault.ErrNotInitialised
	case processor.queue <- processorRequest{
		instruction: instruction,
		reply:       reply,
	}:
	}
	r := <-reply
	if nil != r.err {
		processor.log.Warnf("apply: %s error: %s", name, r.err)
	}
	return r.result, r.err
}

// OwnerProgram - the program identity records are derived under
func (processor *Processor) OwnerProgram() derivation.Address {
	return processor.ownerProgram
}

// Metadata - read back the current metadata record for a data record
func (processor *Processor) Metadata(dataRecord derivation.Address) (*metadata.Record, derivation.Address, error) {
	return processor.fetchRecord(dataRecord)
}

// ReadData - read back the current data record contents
func (processor *Processor) ReadData(dataRecord derivation.Address) ([]byte, error) {
	if _, _, err := processor.fetchRecord(dataRecord); nil != err {
		return nil, err
	}
	return processor.store.Read(dataRecord)
}

// verify the authority signed this instruction
//
// an absent signature is reported separately from a wrong one
func verifySignature(instruction Instruction, signer *account.Account, signature account.Signature) error {
	if nil == signer {
		return fault.ErrInvalidOwnerOrSigner
	}
	if 0 == len(signature) {
		return fault.ErrSignatureMissing
	}
	_, err := instruction.Pack(signer)
	return err
}

// locate and decode the metadata record bound to a data record
//
// the metadata address is recomputed from scratch, never trusted from
// the caller
func (processor *Processor) fetchRecord(dataRecord derivation.Address) (*metadata.Record, derivation.Address, error) {
	metadataAddress, _, err := derivation.Derive(dataRecord, processor.ownerProgram)
	if nil != err {
		return nil, derivation.Address{}, err
	}
	if !processor.store.Exists(metadataAddress) {
		return nil, derivation.Address{}, fault.ErrNotInitialised
	}
	packedRecord, err := processor.store.Read(metadataAddress)
	if nil != err {
		return nil, derivation.Address{}, err
	}
	record, err := metadata.Packed(packedRecord).Unpack()
	if nil != err {
		return nil, derivation.Address{}, err
	}
	return record, metadataAddress, nil
}

// common validation for operations on an existing record: decode the
// metadata, check the lifecycle state, match the signing authority
// and prove the stored bump still reconstructs the metadata address
//
// the state is checked ahead of the authority so a frozen record
// reports not active to any caller, authorised or not
func (processor *Processor) authorise(dataRecord derivation.Address, signer *account.Account, mustBeActive bool) (*metadata.Record, derivation.Address, error) {
	record, metadataAddress, err := processor.fetchRecord(dataRecord)
	if nil != err {
		return nil, derivation.Address{}, err
	}
	if metadata.StateUninitialized == record.State {
		return nil, derivation.Address{}, fault.ErrNotInitialised
	}
	if mustBeActive && metadata.StateActive != record.State {
		return nil, derivation.Address{}, fault.ErrNotActive
	}
	if !bytes.Equal(record.Authority.Bytes(), signer.Bytes()) {
		return nil, derivation.Address{}, fault.ErrNotAuthorised
	}
	err = derivation.Verify(metadataAddress, record.DataRecord, processor.ownerProgram, record.Bump)
	if nil != err {
		return nil, derivation.Address{}, err
	}
	if record.DataRecord != dataRecord {
		return nil, derivation.Address{}, fault.ErrDerivationMismatch
	}
	return record, metadataAddress, nil
}

// Initialize
// ----------

func (ins *Initialize) apply(processor *Processor) (*Result, error) {
	err := verifySignature(ins, ins.Authority, ins.Signature)
	if nil != err {
		return nil, err
	}

	dataAddress := ins.DataRecord
	if !dataAddress.IsZero() {
		// the signer marked family holds account balances, a record
		// there would sweep any refund already standing at the
		// address when it is closed
		if dataAddress.IsSignerAddress() {
			return nil, fault.ErrReservedAddress
		}
		if processor.store.Exists(dataAddress) {
			return nil, fault.ErrAlreadyInitialised
		}

		metadataAddress, bump, err := derivation.Derive(dataAddress, processor.ownerProgram)
		if nil != err {
			return nil, err
		}
		if processor.store.Exists(metadataAddress) {
			return nil, fault.ErrAlreadyInitialised
		}

		// all validation done, record packing cannot fail past this
		// point as every field was checked by the instruction unpack
		packedRecord, err := newRecord(ins, bump, dataAddress)
		if nil != err {
			return nil, err
		}

		// data record first, metadata second
		err = processor.store.AllocateAt(dataAddress, ins.InitialSize, processor.ownerProgram)
		if nil != err {
			return nil, err
		}
		return finishInitialize(processor, dataAddress, metadataAddress, packedRecord)
	}

	// a zero address asks for a fresh runtime allocated data record
	dataAddress, err = processor.store.Allocate(ins.InitialSize, processor.ownerProgram)
	if nil != err {
		return nil, err
	}

	metadataAddress, bump, err := derivation.Derive(dataAddress, processor.ownerProgram)
	if nil != err {
		return nil, err
	}

	packedRecord, err := newRecord(ins, bump, dataAddress)
	if nil != err {
		return nil, err
	}
	return finishInitialize(processor, dataAddress, metadataAddress, packedRecord)
}

// build and pack the initial metadata record
func newRecord(ins *Initialize, bump byte, dataAddress derivation.Address) (metadata.Packed, error) {
	record := metadata.Record{
		State:               metadata.StateActive,
		SerializationStatus: metadata.SerializationRaw,
		Dynamic:             ins.Dynamic,
		DataType:            ins.DataType,
		Bump:                bump,
		DataVersion:         0,
		Authority:           ins.Authority,
		DataRecord:          dataAddress,
	}
	return record.Pack()
}

// allocate and fill the metadata record slot
func finishInitialize(processor *Processor, dataAddress derivation.Address, metadataAddress derivation.Address, packedRecord metadata.Packed) (*Result, error) {
	err := processor.store.AllocateAt(metadataAddress, metadata.RecordSize, processor.ownerProgram)
	if nil != err {
		return nil, err
	}
	err = processor.store.Write(metadataAddress, packedRecord)
	if nil != err {
		return nil, err
	}
	processor.log.Infof("initialize: data: %s  metadata: %s", dataAddress, metadataAddress)
	return &Result{
		DataRecord:     dataAddress,
		MetadataRecord: metadataAddress,
		DataVersion:    0,
		DataStatus:     metadata.StateActive,
	}, nil
}

// Update
// ------

func (ins *Update) apply(processor *Processor) (*Result, error) {
	err := verifySignature(ins, ins.Authority, ins.Signature)
	if nil != err {
		return nil, err
	}

	record, metadataAddress, err := processor.authorise(ins.DataRecord, ins.Authority, true)
	if nil != err {
		return nil, err
	}

	currentData, err := processor.store.Read(ins.DataRecord)
	if nil != err {
		return nil, err
	}
	oldSize := uint64(len(currentData))
	newSize := uint64(len(ins.NewData))
	if oldSize != newSize && !record.Dynamic {
		return nil, fault.ErrResizeNotPermitted
	}
	if math.MaxUint32 == record.DataVersion {
		return nil, fault.ErrVersionOverflow
	}

	record.DataVersion += 1
	record.DataType = ins.DataType
	packedRecord, err := record.Pack()
	if nil != err {
		return nil, err
	}

	// data record first, metadata second
	if oldSize != newSize {
		err = processor.store.Resize(ins.DataRecord, newSize)
		if nil != err {
			return nil, err
		}
	}
	err = processor.store.Write(ins.DataRecord, ins.NewData)
	if nil != err {
		return nil, err
	}
	err = processor.store.Write(metadataAddress, packedRecord)
	if nil != err {
		return nil, err
	}

	processor.log.Infof("update: data: %s  version: %d  size: %d", ins.DataRecord, record.DataVersion, newSize)
	return &Result{
		DataRecord:     ins.DataRecord,
		MetadataRecord: metadataAddress,
		DataVersion:    record.DataVersion,
		DataStatus:     record.State,
	}, nil
}

// UpdateAuthority
// ---------------

// permitted while finalized: freezing the contents does not orphan
// control of the record
func (ins *UpdateAuthority) apply(processor *Processor) (*Result, error) {
	err := verifySignature(ins, ins.Authority, ins.Signature)
	if nil != err {
		return nil, err
	}

	record, metadataAddress, err := processor.authorise(ins.DataRecord, ins.Authority, false)
	if nil != err {
		return nil, err
	}

	record.Authority = ins.NewAuthority
	packedRecord, err := record.Pack()
	if nil != err {
		return nil, err
	}

	err = processor.store.Write(metadataAddress, packedRecord)
	if nil != err {
		return nil, err
	}

	processor.log.Infof("update authority: data: %s  new authority: %s", ins.DataRecord, ins.NewAuthority)
	return &Result{
		DataRecord:     ins.DataRecord,
		MetadataRecord: metadataAddress,
		DataVersion:    record.DataVersion,
		DataStatus:     record.State,
	}, nil
}

// Finalize
// --------

func (ins *Finalize) apply(processor *Processor) (*Result, error) {
	err := verifySignature(ins, ins.Authority, ins.Signature)
	if nil != err {
		return nil, err
	}

	record, metadataAddress, err := processor.authorise(ins.DataRecord, ins.Authority, true)
	if nil != err {
		return nil, err
	}

	record.State = metadata.StateFinalized
	packedRecord, err := record.Pack()
	if nil != err {
		return nil, err
	}

	err = processor.store.Write(metadataAddress, packedRecord)
	if nil != err {
		return nil, err
	}

	processor.log.Infof("finalize: data: %s", ins.DataRecord)
	return &Result{
		DataRecord:     ins.DataRecord,
		MetadataRecord: metadataAddress,
		DataVersion:    record.DataVersion,
		DataStatus:     record.State,
	}, nil
}

// Close
// -----

// permitted while finalized: a frozen record can still be reclaimed
func (ins *Close) apply(processor *Processor) (*Result, error) {
	err := verifySignature(ins, ins.Authority, ins.Signature)
	if nil != err {
		return nil, err
	}

	record, metadataAddress, err := processor.authorise(ins.DataRecord, ins.Authority, false)
	if nil != err {
		return nil, err
	}

	// ensure the full refund fits before the first mutation
	dataBalance := processor.store.Balance(ins.DataRecord)
	metadataBalance := processor.store.Balance(metadataAddress)
	if dataBalance > math.MaxUint64-metadataBalance {
		return nil, fault.ErrBalanceOverflow
	}
	refund := dataBalance + metadataBalance

	beneficiary := derivation.AddressFromAccount(record.Authority)
	if processor.store.Balance(beneficiary) > math.MaxUint64-refund {
		return nil, fault.ErrBalanceOverflow
	}

	// data record first, metadata second, each one zeroed before it
	// is released so no stale contents survive in the store
	err = closeSlot(processor, ins.DataRecord, beneficiary)
	if nil != err {
		return nil, err
	}
	err = closeSlot(processor, metadataAddress, beneficiary)
	if nil != err {
		return nil, err
	}

	processor.log.Infof("close: data: %s  refund: %d", ins.DataRecord, refund)
	return &Result{
		DataRecord:     ins.DataRecord,
		MetadataRecord: metadataAddress,
		DataVersion:    record.DataVersion,
		DataStatus:     record.State,
		Closed:         true,
		Refund:         refund,
	}, nil
}

// zero, release and refund a single slot
func closeSlot(processor *Processor, address derivation.Address, beneficiary derivation.Address) error {
	err := processor.store.Zero(address)
	if nil != err {
		return err
	}
	balance, err := processor.store.Release(address)
	if nil != err {
		return err
	}
	return processor.store.Transfer(balance, address, beneficiary)
}
