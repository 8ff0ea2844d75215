// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/datastored/datastore"
	"github.com/bitmark-inc/datastored/derivation"
)

// Node - type for the RPC
type Node struct {
	Log         *logger.L
	Limiter     *rate.Limiter
	start       time.Time
	version     string
	connections *ConnectionCounter
	processor   *datastore.Processor
}

// InfoArguments - empty arguments for the info enquiry
type InfoArguments struct{}

// InfoReply - server and version information
type InfoReply struct {
	Version      string             `json:"version"`
	Uptime       string             `json:"uptime"`
	Connections  uint64             `json:"connections"`
	OwnerProgram derivation.Address `json:"ownerProgram"`
}

// Info - return some information about this node
func (node *Node) Info(arguments *InfoArguments, reply *InfoReply) error {
	if err := rateLimit(node.Limiter); nil != err {
		return err
	}

	reply.Version = node.version
	reply.Uptime = time.Since(node.start).String()
	reply.Connections = node.connections.Uint64()
	reply.OwnerProgram = node.processor.OwnerProgram()
	return nil
}
