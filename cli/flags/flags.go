//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package flags

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"time"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"
)

var (
	Config    = flag.StringP("config", "c", "", "Board file describing mailboxes, named channels and the shared memory window")
	Mailbox   = flag.StringP("mailbox", "m", "", "Mailbox address: serial:///dev/ttyUSB0, tcp://host:port, ws://host/path, mqtt://broker/prefix or sim://. Overrides the board file")
	MailboxID = flag.Uint8("mailbox-id", 0, "Mailbox number the --mailbox address is attached as")
	Channel   = flag.String("channel", "0", "Channel to issue calls on: a number or a channel name from the board file")
	Timeout   = flag.Duration("timeout", 5*time.Second, "Default timeout for each services call")
	Reconnect = flag.Bool("reconnect", false, "Enable reconnection of network mailboxes")
	Verbose   = flag.Bool("verbose", false, "Verbose output")
	Format    = flag.String("format", "hex", "Output format for binary results: hex or raw")
	Async     = flag.Bool("async", false, "Issue the call asynchronously and wait for its callback")
	Count     = flag.Int("count", 1, "Number of times to repeat the call")

	BaudRate             = flag.Uint("baud-rate", 115200, "Serial port speed")
	HWFC                 = flag.Bool("hw-flow-control", false, "Enable hardware flow control (CTS/RTS)")
	InvertedControlLines = flag.Bool("inverted-control-lines", false, "DTR and RTS control lines use inverted polarity")
	SetControlLines      = flag.Bool("set-control-lines", true, "Set RTS and DTR explicitly when opening the port")

	CertFile   = flag.String("cert-file", "", "Client certificate file name for wss:// and mqtts:// mailboxes")
	KeyFile    = flag.String("key-file", "", "Client key file name")
	CAFile     = flag.String("ca-cert-file", "", "CA certificate file name")
	MQTTUser   = flag.String("mqtt-user", "", "MQTT broker user name")
	MQTTPass   = flag.String("mqtt-pass", "", "MQTT broker password")
	MQTTClient = flag.String("mqtt-client-id", "", "MQTT client id; random if empty")

	MemMode   = flag.String("mem-mode", "", "Staging memory for address parameters: window, devmem, direct or none. Overrides the board file")
	MemBase   = flag.String("mem-base", "", "Global address of the staging window")
	MemSize   = flag.Int("mem-size", 0, "Size of the staging window, bytes")
	MemDevice = flag.String("mem-device", "/dev/mem", "Device mapped in devmem mode")

	MinRevision = flag.String("min-revision", "", "Minimum acceptable SE firmware version for se-revision")
)

func TLSConfigFromFlags() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: *CAFile == "",
	}

	// Load client cert / key if specified
	if *CertFile != "" && *KeyFile == "" {
		return nil, errors.Errorf("Please specify --key-file")
	}
	if *CertFile != "" {
		cert, err := tls.LoadX509KeyPair(*CertFile, *KeyFile)
		if err != nil {
			return nil, errors.Trace(err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// Load CA cert if specified
	if *CAFile != "" {
		caCert, err := ioutil.ReadFile(*CAFile)
		if err != nil {
			return nil, errors.Trace(err)
		}
		tlsConfig.RootCAs = x509.NewCertPool()
		if !tlsConfig.RootCAs.AppendCertsFromPEM(caCert) {
			return nil, errors.Errorf("%s: no certificates found", *CAFile)
		}
	}

	return tlsConfig, nil
}
