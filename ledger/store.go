// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledger - storage slot and balance primitives
//
// The runtime that the lifecycle processor drives: allocation,
// resizing, zeroing and release of storage slots, and movement of the
// balances escrowed against them.  The processor is responsible for
// sequencing these primitives so a failure leaves no half state, this
// package only guarantees each single call is applied fully or not at
// all.
package ledger

import (
	"github.com/bitmark-inc/datastored/derivation"
)

// escrow fee schedule
//
// every slot holds baseEscrow plus escrowPerByte for each byte of its
// current size, the whole amount is returned when the slot is
// released
const (
	baseEscrow     = 1000
	escrowPerByte  = 10
	maximumBalance = ^uint64(0)
)

// EscrowForSize - the balance escrowed against a slot of a given size
func EscrowForSize(size uint64) uint64 {
	return baseEscrow + escrowPerByte*size
}

// Store - the slot and balance operations consumed by the processor
type Store interface {

	// Allocate - create a zero filled slot of the given size at a
	// fresh address, escrowing EscrowForSize against it
	Allocate(size uint64, owner derivation.Address) (derivation.Address, error)

	// AllocateAt - as Allocate but at a caller supplied address,
	// fails with fault.ErrSlotExists if the slot is already present
	AllocateAt(address derivation.Address, size uint64, owner derivation.Address) error

	// Exists - check for slot presence
	Exists(address derivation.Address) bool

	// Read - fetch a copy of the slot contents
	Read(address derivation.Address) ([]byte, error)

	// Write - replace the slot contents, the data must match the
	// current slot size exactly
	Write(address derivation.Address, data []byte) error

	// Resize - change the slot size, zero filling a grown tail or
	// truncating a shrunk one, and adjust the escrowed balance
	Resize(address derivation.Address, newSize uint64) error

	// Zero - overwrite the slot contents with zero bytes
	Zero(address derivation.Address) error

	// Release - remove the slot, its balance entry survives so the
	// caller can transfer it onward; returns the balance remaining
	Release(address derivation.Address) (uint64, error)

	// Balance - current balance held at an address, zero when the
	// address has never held anything
	Balance(address derivation.Address) uint64

	// Transfer - move balance between two addresses
	Transfer(amount uint64, from derivation.Address, to derivation.Address) error
}
