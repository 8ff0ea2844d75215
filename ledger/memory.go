// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/datastored/derivation"
	"github.com/bitmark-inc/datastored/fault"
)

// MemoryStore - a map backed Store for tests and the single-node
// in-process runtime
type MemoryStore struct {
	sync.Mutex
	slots    map[derivation.Address][]byte
	owners   map[derivation.Address]derivation.Address
	balances map[derivation.Address]uint64
	sequence uint64
}

// NewMemoryStore - create an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:    map[derivation.Address][]byte{},
		owners:   map[derivation.Address]derivation.Address{},
		balances: map[derivation.Address]uint64{},
	}
}

// Allocate - create a zero filled slot at a fresh address
func (store *MemoryStore) Allocate(size uint64, owner derivation.Address) (derivation.Address, error) {
	store.Lock()
	defer store.Unlock()

	store.sequence += 1
	address := nextSlotAddress(owner, store.sequence)

	// fresh addresses are digests of an increasing sequence and
	// cannot recur, but fail closed rather than overwrite
	if _, ok := store.slots[address]; ok {
		return derivation.Address{}, fault.ErrSlotExists
	}

	store.createSlot(address, size, owner)
	return address, nil
}

// AllocateAt - create a zero filled slot at a caller supplied address
func (store *MemoryStore) AllocateAt(address derivation.Address, size uint64, owner derivation.Address) error {
	store.Lock()
	defer store.Unlock()

	if _, ok := store.slots[address]; ok {
		return fault.ErrSlotExists
	}
	store.createSlot(address, size, owner)
	return nil
}

// common slot creation, lock already held
func (store *MemoryStore) createSlot(address derivation.Address, size uint64, owner derivation.Address) {
	store.slots[address] = make([]byte, size)
	store.owners[address] = owner
	store.balances[address] += EscrowForSize(size)
}

// Exists - check for slot presence
func (store *MemoryStore) Exists(address derivation.Address) bool {
	store.Lock()
	defer store.Unlock()

	_, ok := store.slots[address]
	return ok
}

// Read - fetch a copy of the slot contents
func (store *MemoryStore) Read(address derivation.Address) ([]byte, error) {
	store.Lock()
	defer store.Unlock()

	data, ok := store.slots[address]
	if !ok {
		return nil, fault.ErrSlotNotFound
	}
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Write - replace the slot contents
func (store *MemoryStore) Write(address derivation.Address, data []byte) error {
	store.Lock()
	defer store.Unlock()

	current, ok := store.slots[address]
	if !ok {
		return fault.ErrSlotNotFound
	}
	if len(current) != len(data) {
		return fault.ErrSlotSizeMismatch
	}
	buffer := make([]byte, len(data))
	copy(buffer, data)
	store.slots[address] = buffer
	return nil
}

// Resize - change the slot size and adjust the escrowed balance
func (store *MemoryStore) Resize(address derivation.Address, newSize uint64) error {
	store.Lock()
	defer store.Unlock()

	current, ok := store.slots[address]
	if !ok {
		return fault.ErrSlotNotFound
	}

	oldSize := uint64(len(current))
	if oldSize == newSize {
		return nil
	}

	oldEscrow := EscrowForSize(oldSize)
	newEscrow := EscrowForSize(newSize)
	balance := store.balances[address]
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
	store.slots[address] = buffer
	store.balances[address] = balance
	return nil
}

// Zero - overwrite the slot contents with zero bytes
func (store *MemoryStore) Zero(address derivation.Address) error {
	store.Lock()
	defer store.Unlock()

	current, ok := store.slots[address]
	if !ok {
		return fault.ErrSlotNotFound
	}
	store.slots[address] = make([]byte, len(current))
	return nil
}

// Release - remove the slot, returning the balance remaining
func (store *MemoryStore) Release(address derivation.Address) (uint64, error) {
	store.Lock()
	defer store.Unlock()

	if _, ok := store.slots[address]; !ok {
		return 0, fault.ErrSlotNotFound
	}
	delete(store.slots, address)
	delete(store.owners, address)
	return store.balances[address], nil
}

// Balance - current balance held at an address
func (store *MemoryStore) Balance(address derivation.Address) uint64 {
	store.Lock()
	defer store.Unlock()

	return store.balances[address]
}

// Transfer - move balance between two addresses
func (store *MemoryStore) Transfer(amount uint64, from derivation.Address, to derivation.Address) error {
	store.Lock()
	defer store.Unlock()

	if from == to || 0 == amount {
		return nil
	}
	if store.balances[from] < amount {
		return fault.ErrInsufficientBalance
	}
	if store.balances[to] > maximumBalance-amount {
		return fault.ErrBalanceOverflow
	}
	store.balances[from] -= amount
	if 0 == store.balances[from] {
		delete(store.balances, from)
	}
	store.balances[to] += amount
	return nil
}

// fresh slot addresses hash the owner and an increasing sequence,
// clearing the signer marker so a slot can never alias an account
func nextSlotAddress(owner derivation.Address, sequence uint64) derivation.Address {
	message := make([]byte, 0, 4+derivation.AddressLength+8)
	message = append(message, []byte("slot")...)
	message = append(message, owner[:]...)
	sequenceBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(sequenceBytes, sequence)
	message = append(message, sequenceBytes...)

	address := derivation.Address(sha3.Sum256(message))
	address[0] &^= 0x01
	return address
}
