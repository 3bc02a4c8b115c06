// File: cmd/version.go
package cmd

// Version is the application version, set at build time:
// go build -ldflags "-X github.com/xkilldash9x/beacon/cmd.Version=1.2.0"
var Version = "1.0"
