// Package main provides the dbupdate CLI, which brings a bot database's schema
// up to the latest version known to this build.
//
// Commands:
//   - init: apply the base schema to an empty database
//   - migrate: run the upgrade pass
//   - status: show the stored version and pending units
//   - doctor: run health checks on schema versioning
//   - config show: print the effective configuration
//   - version: print build information
//
// Usage:
//
//	dbupdate [flags] <command>
package main

func main() {
	Execute()
}
