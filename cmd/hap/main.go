// hap pairs with and verifies AirPlay and Companion-Link devices.
//
// Usage:
//
//	hap discover [--service airplay|companion|raop]
//	hap pair <target> --protocol airplay|companion [--transient] [--pin PIN]
//	hap verify <target> --protocol airplay|companion [--id ACCESSORY-ID]
//
// A target is host:port or a device identifier or instance name, which is
// resolved over mDNS.
//
// Configuration is read from ~/.hap/config.yaml and HAP_* environment
// variables. Flags override both:
//
//	log-level  disabled|error|warn|info|debug|trace (default: info)
//	store      file|bolt (default: file)
//	store-path credentials path (default: ~/.hap/credentials.yaml or .db)
//	name       controller name sent during pairing
//	mac        Companion-Link pairing id
//	timeout    request timeout (default: 3s)
//
// Example:
//
//	hap pair 192.168.1.20:7000 --protocol airplay
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
