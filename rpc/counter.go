// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"sync/atomic"
)

// ConnectionCounter - tracks the live client connection count across
// the accept loops, just a 64 bit unsigned integer
type ConnectionCounter uint64

// Increment - add 1 to the counter, returns new value
func (counter *ConnectionCounter) Increment() uint64 {
	return atomic.AddUint64((*uint64)(counter), 1)
}

// Decrement - subtract 1 from the counter, returns new value
func (counter *ConnectionCounter) Decrement() uint64 {
	return atomic.AddUint64((*uint64)(counter), ^uint64(0))
}

// Uint64 - returns current value
func (counter *ConnectionCounter) Uint64() uint64 {
	return atomic.LoadUint64((*uint64)(counter))
}
