// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"encoding/hex"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/datastored/datastore"
	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/fault"
	"github.com/bitmark-inc/datastored/metadata"
)

// DataStore - type for the RPC
//
// instructions arrive fully signed, the arguments are the wire
// structures themselves so accounts decode from Base58 and signatures
// from hex
type DataStore struct {
	Log       *logger.L
	Limiter   *rate.Limiter
	Processor *datastore.Processor
}

// HexData - a byte slice that JSON encodes as a hex string
type HexData []byte

// MarshalText - convert to hex for JSON
func (data HexData) MarshalText() ([]byte, error) {
	b := make([]byte, hex.EncodedLen(len(data)))
	hex.Encode(b, data)
	return b, nil
}

// UnmarshalText - convert hex from JSON
func (data *HexData) UnmarshalText(s []byte) error {
	*data = make([]byte, hex.DecodedLen(len(s)))
	_, err := hex.Decode(*data, s)
	return err
}

// OperationReply - result of a lifecycle operation
type OperationReply struct {
	DataRecord     derivation.Address `json:"dataRecord"`
	MetadataRecord derivation.Address `json:"metadataRecord"`
	DataVersion    uint32             `json:"dataVersion"`
	DataStatus     metadata.DataState `json:"dataStatus"`
	Closed         bool               `json:"closed,omitempty"`
	Refund         uint64             `json:"refund,omitempty"`
}

// copy a processor result into the reply
func (reply *OperationReply) set(result *datastore.Result) {
	reply.DataRecord = result.DataRecord
	reply.MetadataRecord = result.MetadataRecord
	reply.DataVersion = result.DataVersion
	reply.DataStatus = result.DataStatus
	reply.Closed = result.Closed
	reply.Refund = result.Refund
}

// Initialize - create a data record / metadata record pair
func (service *DataStore) Initialize(arguments *datastore.Initialize, reply *OperationReply) error {
	if err := rateLimit(service.Limiter); nil != err {
		return err
	}
	if nil == arguments || nil == arguments.Authority {
		return fault.ErrMissingParameters
	}
	service.Log.Infof("DataStore.Initialize: %s", arguments.Authority)

	result, err := service.Processor.Apply(arguments)
	if nil != err {
		return err
	}
	reply.set(result)
	return nil
}

// Update - replace the data record contents
func (service *DataStore) Update(arguments *datastore.Update, reply *OperationReply) error {
	if err := rateLimit(service.Limiter); nil != err {
		return err
	}
	if nil == arguments || nil == arguments.Authority {
		return fault.ErrMissingParameters
	}
	service.Log.Infof("DataStore.Update: %s", arguments.DataRecord)

	result, err := service.Processor.Apply(arguments)
	if nil != err {
		return err
	}
	reply.set(result)
	return nil
}

// UpdateAuthority - hand control of the record to another account
func (service *DataStore) UpdateAuthority(arguments *datastore.UpdateAuthority, reply *OperationReply) error {
	if err := rateLimit(service.Limiter); nil != err {
		return err
	}
	if nil == arguments || nil == arguments.Authority || nil == arguments.NewAuthority {
		return fault.ErrMissingParameters
	}
	service.Log.Infof("DataStore.UpdateAuthority: %s", arguments.DataRecord)

	result, err := service.Processor.Apply(arguments)
	if nil != err {
		return err
	}
	reply.set(result)
	return nil
}

// Finalize - freeze the data record contents forever
func (service *DataStore) Finalize(arguments *datastore.Finalize, reply *OperationReply) error {
	if err := rateLimit(service.Limiter); nil != err {
		return err
	}
	if nil == arguments || nil == arguments.Authority {
		return fault.ErrMissingParameters
	}
	service.Log.Infof("DataStore.Finalize: %s", arguments.DataRecord)

	result, err := service.Processor.Apply(arguments)
	if nil != err {
		return err
	}
	reply.set(result)
	return nil
}

// Close - destroy the record pair and refund the escrowed balance
func (service *DataStore) Close(arguments *datastore.Close, reply *OperationReply) error {
	if err := rateLimit(service.Limiter); nil != err {
		return err
	}
	if nil == arguments || nil == arguments.Authority {
		return fault.ErrMissingParameters
	}
	service.Log.Infof("DataStore.Close: %s", arguments.DataRecord)

	result, err := service.Processor.Apply(arguments)
	if nil != err {
		return err
	}
	reply.set(result)
	return nil
}

// read back enquiries
// -------------------

// RecordArguments - select a record pair by its data record address
type RecordArguments struct {
	DataRecord derivation.Address `json:"dataRecord"`
}

// MetadataReply - the decoded metadata record
type MetadataReply struct {
	MetadataRecord derivation.Address `json:"metadataRecord"`
	Metadata       metadata.Record    `json:"metadata"`
}

// Metadata - fetch the current metadata record for a data record
func (service *DataStore) Metadata(arguments *RecordArguments, reply *MetadataReply) error {
	if err := rateLimit(service.Limiter); nil != err {
		return err
	}
	if nil == arguments {
		return fault.ErrMissingParameters
	}
	service.Log.Debugf("DataStore.Metadata: %s", arguments.DataRecord)

	record, metadataAddress, err := service.Processor.Metadata(arguments.DataRecord)
	if nil != err {
		return err
	}
	reply.MetadataRecord = metadataAddress
	reply.Metadata = *record
	return nil
}

// ReadReply - the current data record contents
type ReadReply struct {
	DataVersion uint32             `json:"dataVersion"`
	DataStatus  metadata.DataState `json:"dataStatus"`
	Data        HexData            `json:"data"`
}

// Read - fetch the current data record contents
func (service *DataStore) Read(arguments *RecordArguments, reply *ReadReply) error {
	if err := rateLimit(service.Limiter); nil != err {
		return err
	}
	if nil == arguments {
		return fault.ErrMissingParameters
	}
	service.Log.Debugf("DataStore.Read: %s", arguments.DataRecord)

	record, _, err := service.Processor.Metadata(arguments.DataRecord)
	if nil != err {
		return err
	}
	data, err := service.Processor.ReadData(arguments.DataRecord)
	if nil != err {
		return err
	}
	reply.DataVersion = record.DataVersion
	reply.DataStatus = record.State
	reply.Data = HexData(data)
	return nil
}
