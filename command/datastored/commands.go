// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/exitwithstatus"

	"github.com/bitmark-inc/datastored/account"
	"github.com/bitmark-inc/datastored/rpc"
)

const (
	rpcCertificateFilename = "rpc.crt"
	rpcPrivateKeyFilename  = "rpc.key"

	authorityKeyFilename = "authority.private"
)

// setup command handler
//
// commands that run to create key and certificate files; these
// commands cannot access any internal database or states or the
// configuration file
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
		arguments = arguments[1:]
	}

	switch command {
	case "gen-rpc-cert", "rpc":
		certificateFilename := getFilenameWithDirectory(arguments, rpcCertificateFilename)
		privateKeyFilename := getFilenameWithDirectory(arguments, rpcPrivateKeyFilename)

		addresses := []string{}
		if len(arguments) >= 2 {
			for _, a := range arguments[1:] {
				if "" != a {
					addresses = append(addresses, a)
				}
			}
		}

		err := rpc.MakeSelfSignedCertificate("rpc", certificateFilename, privateKeyFilename, 0 != len(addresses), addresses)
		if nil != err {
			fmt.Printf("generate RPC key: %q and certificate: %q error: %s\n", privateKeyFilename, certificateFilename, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated RPC key: %q and certificate: %q\n", privateKeyFilename, certificateFilename)

	case "gen-authority", "authority":
		privateKeyFilename := getFilenameWithDirectory(arguments, authorityKeyFilename)

		if _, err := os.Stat(privateKeyFilename); nil == err {
			fmt.Printf("generate private key: %q error: file already exists\n", privateKeyFilename)
			exitwithstatus.Exit(1)
		}

		key, err := account.NewED25519PrivateKey(false)
		if nil != err {
			fmt.Printf("generate private key: %q error: %s\n", privateKeyFilename, err)
			exitwithstatus.Exit(1)
		}

		if err := ioutil.WriteFile(privateKeyFilename, []byte(key.String()+"\n"), 0600); nil != err {
			os.Remove(privateKeyFilename)
			fmt.Printf("generate private key: %q error: %s\n", privateKeyFilename, err)
			exitwithstatus.Exit(1)
		}

		fmt.Printf("generated private key: %q\n", privateKeyFilename)
		fmt.Printf("authority account: %s\n", key.Account())

	case "start", "run":
		return false // continue processing

	case "version", "v":
		fmt.Printf("%s\n", version)

	default:
		switch command {
		case "help", "h", "?":
		case "", " ":
			fmt.Printf("error: missing command\n")
		default:
			fmt.Printf("error: no such command: %s\n", command)
		}

		fmt.Printf("usage: %s [--help | -h] [--verbose | -v] [--quiet | -q] [--config-file=FILE | -c FILE] [command]\n", program)
		fmt.Printf("supported commands:\n\n")
		fmt.Printf("  help                             (h)       - display this message\n\n")
		fmt.Printf("  version                          (v)       - display the program version\n\n")

		fmt.Printf("  gen-rpc-cert [DIR [HOSTS...]]    (rpc)     - create a self-signed RPC certificate\n")
		fmt.Printf("                                               %q and %q\n", rpcCertificateFilename, rpcPrivateKeyFilename)
		fmt.Printf("\n")

		fmt.Printf("  gen-authority [DIR]              (authority) - create an authority signing key\n")
		fmt.Printf("                                               %q\n", authorityKeyFilename)
		fmt.Printf("\n")

		fmt.Printf("  start                            (run)     - just run the daemon\n\n")
		exitwithstatus.Exit(1)
	}

	// indicate processing complete and prevent further processing
	return true
}

// place a file in the optional directory argument
func getFilenameWithDirectory(arguments []string, name string) string {
	directory := "."
	if len(arguments) >= 1 && "" != arguments[0] {
		directory = arguments[0]
	}
	return filepath.Join(directory, name)
}
