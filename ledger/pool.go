// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/binary"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/fault"
	"github.com/bitmark-inc/logger"
)

// one byte key prefixes for the pools sharing the database
const (
	slotPrefix    = 'S' // slot contents
	ownerPrefix   = 'O' // slot owning program
	balancePrefix = 'B' // balances, 8 byte big endian
)

// reserved keys
var (
	versionKey  = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}
	sequenceKey = []byte{0x00, 'S', 'E', 'Q', 'U', 'E', 'N', 'C', 'E'}
)

// for database version
const currentDBVersion = 0x100

// holds the database handle
var globalData struct {
	sync.RWMutex
	log         *logger.L
	database    *leveldb.DB
	store       *PoolStore
	initialised bool
}

// PoolStore - Store implementation on a leveldb database
type PoolStore struct {
	database *leveldb.DB
	sequence uint64
}

// Initialise - open up the database connection
//
// this must be called before Get
func Initialise(database string) error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}

	globalData.log = logger.New("ledger")
	globalData.log.Info("starting…")

	db, err := leveldb.OpenFile(database, nil)
	if nil != err {
		return err
	}

	// ensure schema version matches
	versionValue, err := db.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		buffer := make([]byte, 8)
		binary.BigEndian.PutUint64(buffer, currentDBVersion)
		err = db.Put(versionKey, buffer, nil)
		if nil != err {
			db.Close()
			return err
		}
	} else if nil != err {
		db.Close()
		return err
	} else if 8 != len(versionValue) || currentDBVersion != binary.BigEndian.Uint64(versionValue) {
		db.Close()
		return fault.ErrWrongDatabaseVersion
	}

	sequence := uint64(0)
	sequenceValue, err := db.Get(sequenceKey, nil)
	if nil == err && 8 == len(sequenceValue) {
		sequence = binary.BigEndian.Uint64(sequenceValue)
	} else if leveldb.ErrNotFound != err && nil != err {
		db.Close()
		return err
	}

	globalData.database = db
	globalData.store = &PoolStore{
		database: db,
		sequence: sequence,
	}
	globalData.initialised = true

	return nil
}

// Finalise - close the database connection
func Finalise() {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return
	}

	globalData.log.Info("shutting down…")
	globalData.database.Close()
	globalData.database = nil
	globalData.store = nil
	globalData.initialised = false
	globalData.log.Info("finished")
	globalData.log.Flush()
}

// Get - the leveldb backed Store
//
// nil if Initialise was not called
func Get() Store {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil
	}
	return globalData.store
}

// prepend a pool prefix onto an address
func prefixedKey(prefix byte, address derivation.Address) []byte {
	key := make([]byte, 1, 1+derivation.AddressLength)
	key[0] = prefix
	return append(key, address[:]...)
}

// fetch raw bytes, nil if absent
func (store *PoolStore) get(prefix byte, address derivation.Address) []byte {
	value, err := store.database.Get(prefixedKey(prefix, address), nil)
	if leveldb.ErrNotFound == err {
		return nil
	}
	logger.PanicIfError("ledger.get", err)
	return value
}

func (store *PoolStore) put(prefix byte, address derivation.Address, value []byte) {
	err := store.database.Put(prefixedKey(prefix, address), value, nil)
	logger.PanicIfError("ledger.put", err)
}

func (store *PoolStore) delete(prefix byte, address derivation.Address) {
	err := store.database.Delete(prefixedKey(prefix, address), nil)
	logger.PanicIfError("ledger.delete", err)
}

// balance entries are 8 byte big endian, absence is zero
func (store *PoolStore) getBalance(address derivation.Address) uint64 {
	value := store.get(balancePrefix, address)
	if nil == value {
		return 0
	}
	if 8 != len(value) {
		logger.Panicf("ledger.getBalance: corrupt balance record: %x", value)
	}
	return binary.BigEndian.Uint64(value)
}

func (store *PoolStore) putBalance(address derivation.Address, balance uint64) {
	if 0 == balance {
		store.delete(balancePrefix, address)
		return
	}
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, balance)
	store.put(balancePrefix, address, buffer)
}

// Allocate - create a zero filled slot at a fresh address
func (store *PoolStore) Allocate(size uint64, owner derivation.Address) (derivation.Address, error) {
	globalData.Lock()
	defer globalData.Unlock()

	store.sequence += 1
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, store.sequence)
	err := store.database.Put(sequenceKey, buffer, nil)
	logger.PanicIfError("ledger.Allocate", err)

	address := nextSlotAddress(owner, store.sequence)
	if nil != store.get(slotPrefix, address) {
		return derivation.Address{}, fault.ErrSlotExists
	}

	store.createSlot(address, size, owner)
	return address, nil
}

// AllocateAt - create a zero filled slot at a caller supplied address
func (store *PoolStore) AllocateAt(address derivation.Address, size uint64, owner derivation.Address) error {
	globalData.Lock()
	defer globalData.Unlock()

	if nil != store.get(slotPrefix, address) {
		return fault.ErrSlotExists
	}
	store.createSlot(address, size, owner)
	return nil
}

// common slot creation, lock already held
func (store *PoolStore) createSlot(address derivation.Address, size uint64, owner derivation.Address) {
	store.put(slotPrefix, address, make([]byte, size))
	store.put(ownerPrefix, address, owner[:])
	store.putBalance(address, store.getBalance(address)+EscrowForSize(size))
}

// Exists - check for slot presence
func (store *PoolStore) Exists(address derivation.Address) bool {
	globalData.RLock()
	defer globalData.RUnlock()

	return nil != store.get(slotPrefix, address)
}

// Read - fetch a copy of the slot contents
func (store *PoolStore) Read(address derivation.Address) ([]byte, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	data := store.get(slotPrefix, address)
	if nil == data {
		return nil, fault.ErrSlotNotFound
	}
	return data, nil
}

// Write - replace the slot contents
func (store *PoolStore) Write(address derivation.Address, data []byte) error {
	globalData.Lock()
	defer globalData.Unlock()

	current := store.get(slotPrefix, address)
	if nil == current {
		return fault.ErrSlotNotFound
	}
	if len(current) != len(data) {
		return fault.ErrSlotSizeMismatch
	}
	store.put(slotPrefix, address, data)
	return nil
}

// Resize - change the slot size and adjust the escrowed balance
func (store *PoolStore) Resize(address derivation.Address, newSize uint64) error {
	globalData.Lock()
	defer globalData.Unlock()

	current := store.get(slotPrefix, address)
	if nil == current {
		return fault.ErrSlotNotFound
	}

	oldSize := uint64(len(current))
	if oldSize == newSize {
		return nil
	}

	oldEscrow := EscrowForSize(oldSize)
	newEscrow := EscrowForSize(newSize)
	balance := store.getBalance(address)
	if newEscrow > oldEscrow {
		increase := newEscrow - oldEscrow
		if balance > maximumBalance-increase {
			return fault.ErrBalanceOverflow
		}
		balance += increase
	} else {
		decrease := oldEscrow - newEscrow
		if balance < decrease {
			return fault.ErrInsufficientBalance
		}
		balance -= decrease
	}

	buffer := make([]byte, newSize)
	copy(buffer, current) // grow keeps a zero tail, shrink truncates
	store.put(slotPrefix, address, buffer)
	store.putBalance(address, balance)
	return nil
}

// Zero - overwrite the slot contents with zero bytes
func (store *PoolStore) Zero(address derivation.Address) error {
	globalData.Lock()
	defer globalData.Unlock()

	current := store.get(slotPrefix, address)
	if nil == current {
		return fault.ErrSlotNotFound
	}
	store.put(slotPrefix, address, make([]byte, len(current)))
	return nil
}

// Release - remove the slot, returning the balance remaining
func (store *PoolStore) Release(address derivation.Address) (uint64, error) {
	globalData.Lock()
	defer globalData.Unlock()

	if nil == store.get(slotPrefix, address) {
		return 0, fault.ErrSlotNotFound
	}
	store.delete(slotPrefix, address)
	store.delete(ownerPrefix, address)
	return store.getBalance(address), nil
}

// Balance - current balance held at an address
func (store *PoolStore) Balance(address derivation.Address) uint64 {
	globalData.RLock()
	defer globalData.RUnlock()

	return store.getBalance(address)
}

// Transfer - move balance between two addresses
func (store *PoolStore) Transfer(amount uint64, from derivation.Address, to derivation.Address) error {
	globalData.Lock()
	defer globalData.Unlock()

	if from == to || 0 == amount {
		return nil
	}
	fromBalance := store.getBalance(from)
	if fromBalance < amount {
		return fault.ErrInsufficientBalance
	}
	toBalance := store.getBalance(to)
	if toBalance > maximumBalance-amount {
		return fault.ErrBalanceOverflow
	}
	store.putBalance(from, fromBalance-amount)
	store.putBalance(to, toBalance+amount)
	return nil
}
