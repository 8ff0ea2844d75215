// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpc - JSON RPC server over TLS
//
// The managed storage operations and the read back enquiries are
// exposed as net/rpc services using the JSON codec.  Instructions
// arrive fully signed: the server never holds a client key and a
// request that fails validation leaves the store untouched.
package rpc

import (
	"crypto/tls"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/datastored/datastore"
	"github.com/bitmark-inc/datastored/fault"
)

const (
	logName = "client_rpc"

	// rate limits per connected service
	rateLimitDataStore = 200
	rateBurstDataStore = 100
	rateLimitNode      = 200
	rateBurstNode      = 100
)

// Configuration - configuration file data for RPC setup
type Configuration struct {
	MaximumConnections uint64   `gluamapper:"maximum_connections" json:"maximum_connections"`
	Listen             []string `gluamapper:"listen" json:"listen"`
	Certificate        string   `gluamapper:"certificate" json:"certificate"`
	PrivateKey         string   `gluamapper:"private_key" json:"private_key"`
}

// globals
type rpcData struct {
	sync.RWMutex // to allow locking

	log *logger.L // logger

	listeners []net.Listener
	server    *rpc.Server

	connections ConnectionCounter

	// set once during initialise
	initialised bool
}

// global data
var globalData rpcData

// Initialise - start up the RPC listeners
func Initialise(configuration *Configuration, version string, processor *datastore.Processor) error {

	globalData.Lock()
	defer globalData.Unlock()

	// no need to start if already started
	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}

	log := logger.New("rpc")
	globalData.log = log
	log.Info("starting…")

	if configuration.MaximumConnections < 1 {
		log.Errorf("invalid %s maximum connection limit: %d", logName, configuration.MaximumConnections)
		return fault.ErrMissingParameters
	}
	if 0 == len(configuration.Listen) {
		log.Errorf("missing %s listen", logName)
		return fault.ErrMissingParameters
	}

	tlsConfiguration, fingerprint, err := getCertificate(log, logName, configuration.Certificate, configuration.PrivateKey)
	if nil != err {
		return err
	}
	log.Infof("%s: SHA3-256 fingerprint: %x", logName, fingerprint)

	ipType, err := parseListenAddresses(configuration.Listen, log)
	if nil != err {
		return err
	}

	globalData.server = createServer(log, version, time.Now().UTC(), processor, &globalData.connections)

	for i, listen := range configuration.Listen {
		log.Infof("starting RPC server: %s", listen)
		listener, err := tls.Listen(ipType[i], listen, tlsConfiguration)
		if nil != err {
			log.Errorf("rpc server listen error: %s", err)
			return err
		}
		globalData.listeners = append(globalData.listeners, listener)

		go serveConnections(listener, globalData.server, configuration.MaximumConnections, log, &globalData.connections)
	}

	// all data initialised
	globalData.initialised = true

	return nil
}

// Finalise - stop the RPC listeners
func Finalise() error {

	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return fault.ErrNotInitialised
	}

	globalData.log.Info("shutting down…")

	for _, listener := range globalData.listeners {
		_ = listener.Close()
	}
	globalData.listeners = nil
	globalData.server = nil

	globalData.initialised = false

	globalData.log.Info("finished")
	globalData.log.Flush()

	return nil
}

// register all services on a fresh net/rpc server
func createServer(log *logger.L, version string, start time.Time, processor *datastore.Processor, connections *ConnectionCounter) *rpc.Server {

	server := rpc.NewServer()

	_ = server.Register(&DataStore{
		Log:       logger.New("rpc-datastore"),
		Limiter:   rate.NewLimiter(rateLimitDataStore, rateBurstDataStore),
		Processor: processor,
	})
	_ = server.Register(&Node{
		Log:         logger.New("rpc-node"),
		Limiter:     rate.NewLimiter(rateLimitNode, rateBurstNode),
		start:       start,
		version:     version,
		connections: connections,
		processor:   processor,
	})

	return server
}

// accept loop for one listener
func serveConnections(listen net.Listener, server *rpc.Server, maximumConnections uint64, log *logger.L, count *ConnectionCounter) {
	for {
		conn, err := listen.Accept()
		if nil != err {
			log.Errorf("rpc.server terminated: accept error: %s", err)
			break
		}
		if count.Increment() <= maximumConnections {
			go func() {
				server.ServeCodec(jsonrpc.NewServerCodec(conn))
				_ = conn.Close()
				count.Decrement()
			}()
		} else {
			count.Decrement()
			_ = conn.Close()
		}
	}
	_ = listen.Close()
	log.Error("RPC accept terminated")
}

// determine the tcp type of each listen address
func parseListenAddresses(addresses []string, log *logger.L) ([]string, error) {
	parsed := make([]string, len(addresses))
	for i, listen := range addresses {
		if 0 == len(listen) {
			return nil, fault.ErrInvalidIPAddress
		}
		if '*' == listen[0] {
			// change "*:PORT" to "[::]:PORT"
			// on the assumption that this will listen on tcp4 and tcp6
			addresses[i] = "[::]" + ":" + strings.Split(listen, ":")[1]
			listen = "::"
			parsed[i] = "tcp"
		} else if '[' == listen[0] {
			listen = strings.Split(listen[1:], "]:")[0]
			parsed[i] = "tcp6"
		} else {
			listen = strings.Split(listen, ":")[0]
			parsed[i] = "tcp4"
		}

		if ip := net.ParseIP(listen); nil == ip {
			err := fault.ErrInvalidIPAddress
			log.Errorf("rpc server listen error: %s", err)
			return nil, err
		}
	}

	return parsed, nil
}
