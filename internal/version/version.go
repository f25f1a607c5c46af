package version

// Version is the current version of beacon and the relay.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/beaconcast/beacon/internal/version.Version=v1.0.0'"
var Version = "dev"
