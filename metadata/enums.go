// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metadata

import (
	"fmt"
	"strings"

	"github.com/bitmark-inc/datastored/fault"
)

// DataState - lifecycle state enumeration
type DataState byte

// possible lifecycle states
//
// a closed tagged variant: illegal combinations such as "finalized
// but uninitialized" are unrepresentable.  Closed records have no
// state value, a closed record no longer exists.
const (
	StateUninitialized DataState = 0
	StateActive        DataState = 1
	StateFinalized     DataState = 2
	stateLimit         DataState = iota // one greater than last valid value
)

// SerializationStatus - how data record bytes are to be interpreted
type SerializationStatus byte

// possible serialization statuses
const (
	SerializationRaw     SerializationStatus = 0
	SerializationEncoded SerializationStatus = 1
	serializationLimit   SerializationStatus = iota
)

// DataType - caller declared content category, opaque to the daemon
type DataType byte

// possible data types
const (
	TypeCustom    DataType = 0
	TypeJSON      DataType = 1
	TypeImage     DataType = 2
	TypeHTML      DataType = 3
	TypePDF       DataType = 4
	dataTypeLimit DataType = iota
)

// IsValid - state is inside the closed enumeration
func (state DataState) IsValid() bool {
	return state < stateLimit
}

// String - convert state for use by the fmt package (for %s)
func (state DataState) String() string {
	switch state {
	case StateUninitialized:
		return "Uninitialized"
	case StateActive:
		return "Active"
	case StateFinalized:
		return "Finalized"
	default:
		return fmt.Sprintf("*unknown-state-%d*", byte(state))
	}
}

// MarshalText - convert state to text
func (state DataState) MarshalText() ([]byte, error) {
	if !state.IsValid() {
		return nil, fault.ErrInvalidDataState
	}
	return []byte(state.String()), nil
}

// UnmarshalText - convert text to a state
func (state *DataState) UnmarshalText(s []byte) error {
	switch strings.ToLower(string(s)) {
	case "uninitialized":
		*state = StateUninitialized
	case "active":
		*state = StateActive
	case "finalized":
		*state = StateFinalized
	default:
		return fault.ErrInvalidDataState
	}
	return nil
}

// IsValid - status is inside the closed enumeration
func (status SerializationStatus) IsValid() bool {
	return status < serializationLimit
}

// String - convert status for use by the fmt package (for %s)
func (status SerializationStatus) String() string {
	switch status {
	case SerializationRaw:
		return "Raw"
	case SerializationEncoded:
		return "Encoded"
	default:
		return fmt.Sprintf("*unknown-serialization-%d*", byte(status))
	}
}

// MarshalText - convert status to text
func (status SerializationStatus) MarshalText() ([]byte, error) {
	if !status.IsValid() {
		return nil, fault.ErrInvalidSerialization
	}
	return []byte(status.String()), nil
}

// UnmarshalText - convert text to a status
func (status *SerializationStatus) UnmarshalText(s []byte) error {
	switch strings.ToLower(string(s)) {
	case "raw":
		*status = SerializationRaw
	case "encoded":
		*status = SerializationEncoded
	default:
		return fault.ErrInvalidSerialization
	}
	return nil
}

// IsValid - data type is inside the closed enumeration
func (dataType DataType) IsValid() bool {
	return dataType < dataTypeLimit
}

// String - convert data type for use by the fmt package (for %s)
func (dataType DataType) String() string {
	switch dataType {
	case TypeCustom:
		return "custom"
	case TypeJSON:
		return "json"
	case TypeImage:
		return "image"
	case TypeHTML:
		return "html"
	case TypePDF:
		return "pdf"
	default:
		return fmt.Sprintf("*unknown-type-%d*", byte(dataType))
	}
}

// MarshalText - convert data type to text
func (dataType DataType) MarshalText() ([]byte, error) {
	if !dataType.IsValid() {
		return nil, fault.ErrInvalidDataType
	}
	return []byte(dataType.String()), nil
}

// UnmarshalText - convert text to a data type
func (dataType *DataType) UnmarshalText(s []byte) error {
	switch strings.ToLower(string(s)) {
	case "custom", "":
		*dataType = TypeCustom
	case "json":
		*dataType = TypeJSON
	case "image", "img":
		*dataType = TypeImage
	case "html":
		*dataType = TypeHTML
	case "pdf":
		*dataType = TypePDF
	default:
		return fault.ErrInvalidDataType
	}
	return nil
}
