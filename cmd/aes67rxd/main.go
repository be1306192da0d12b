/*
Copyright (c) AES67 RX SDK contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command aes67rxd is a thin wrapper around package session (§6.4): it
// resolves an interface, fetches a stream description, and runs the
// resulting session until interrupted. It is deliberately out of the core's
// scope, existing only so the core's inputs are reproducible from a
// terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/soundondigital/aes67rx/rtpaudio"
	"github.com/soundondigital/aes67rx/sdp"
	"github.com/soundondigital/aes67rx/session"
)

var version = "dev"

var (
	registryURL   string
	ifaceSelector string
	audioDevice   string
	listDevices   bool
	queryVersion  bool
	ringFrames    int
	playoutDelay  uint32
	metricsAddr   string
	logLevel      string
)

// RootCmd is the entry point; exported so it can be extended without
// touching core functionality, matching the teacher's calnex/cmd convention.
var RootCmd = &cobra.Command{
	Use:   "aes67rxd",
	Short: "receive an AES67/RAVENNA PCM stream disciplined by PTP",
	RunE:  run,
}

func init() {
	RootCmd.Flags().StringVar(&registryURL, "registry", "", "URL to fetch the stream's SDP description from")
	RootCmd.Flags().StringVar(&ifaceSelector, "interfaces", "", "network interface name to join the PTP and RTP multicast groups on")
	RootCmd.Flags().StringVar(&audioDevice, "audio-device", "", "name of the output audio device (out of core scope; logged only)")
	RootCmd.Flags().BoolVar(&listDevices, "list-audio-devices", false, "list available audio devices and exit (out of core scope)")
	RootCmd.Flags().BoolVar(&queryVersion, "query-version", false, "print the daemon version and exit")
	RootCmd.Flags().IntVar(&ringFrames, "ring-frames", 0, "playout ring capacity in frames (0: one second at the stream's sample rate)")
	RootCmd.Flags().Uint32Var(&playoutDelay, "playout-delay-frames", 0, "fixed playout delay, in frames, subtracted from the PTP-derived target timestamp")
	RootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9101", "address to serve Prometheus metrics on")
	RootCmd.Flags().StringVar(&logLevel, "loglevel", "info", "log level: debug, info, warning, error")
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(_ *cobra.Command, _ []string) error {
	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return fmt.Errorf("unrecognized log level: %s", logLevel)
	}

	if queryVersion {
		fmt.Println(version)
		return nil
	}

	if listDevices {
		fmt.Println("audio device enumeration is not implemented; pass --audio-device by name")
		return nil
	}

	if registryURL == "" {
		return fmt.Errorf("--registry is required")
	}
	if ifaceSelector == "" {
		return fmt.Errorf("--interfaces is required")
	}

	raw, err := fetchSDP(registryURL)
	if err != nil {
		return fmt.Errorf("fetch stream description: %w", err)
	}
	stream, err := sdp.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse stream description: %w", err)
	}

	iface, err := net.InterfaceByName(ifaceSelector)
	if err != nil {
		return fmt.Errorf("resolve interface %q: %w", ifaceSelector, err)
	}

	log.WithField("device", audioDevice).Info("audio device selection is out of core scope; device I/O is not performed by this binary")

	sess, err := session.New(session.Config{
		Interface:          iface,
		Stream:             stream,
		DeviceByteOrder:    rtpaudio.HostByteOrder(),
		RingFrames:         ringFrames,
		PlayoutDelayFrames: playoutDelay,
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go sess.Stats().Serve(metricsAddr)

	sess.Start(ctx)
	log.WithFields(map[string]interface{}{
		"interface": iface.Name,
		"multicast": stream.MulticastAddr.String(),
		"port":      stream.Port,
		"rate":      stream.SampleRate,
		"channels":  stream.Channels,
	}).Info("session started")

	<-ctx.Done()
	log.Info("shutting down")
	sess.Stop()
	return nil
}

// fetchSDP retrieves a stream description from a URL or, for convenience in
// local testing, a plain filesystem path.
func fetchSDP(location string) ([]byte, error) {
	if _, err := os.Stat(location); err == nil {
		return os.ReadFile(location)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(location)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
