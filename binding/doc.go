// Package binding declares native exports and installs them into a host.
//
// # Export Tables
//
// A [Table] is the single source of truth for what a native module offers.
// It is declared once, usually as a package-level variable:
//
//	var Exports = binding.MustTable(
//	    binding.Entry{Name: "initialize", Impl: Initialize},
//	)
//
// Duplicate or empty names are rejected when the table is built, so a host
// never receives them.
//
// # Installation
//
// [Init] turns the table into property descriptors and hands the whole
// batch to the host in one DefineProperties call. Installation is
// all-or-nothing: on failure the host gets exactly one thrown error
// carrying [InstallationFailedMessage] and the caller gets nil plus an
// error matching [ErrInstallation].
//
// [Module] adds the load-once state machine and exposes [Module.Register],
// the [Hook] a host calls when it loads the module.
package binding
