// Package dsv implements the Dimensional Scattering Vault: the scatter/
// gather obfuscation pipeline that splits an inbound plaintext packet into
// fragments, encrypts and pads each one so that no two fragments share an
// observable pattern, and releases them onto the wire with independently
// randomized transmission delays.
//
// The package is a passive library. It owns no socket, no file, and no
// clock beyond what is needed to schedule fragment release; the caller
// (an outer VPN daemon, or the demo harness in cmd/dsvd) is responsible
// for all network I/O, peer authentication, and routing.
package dsv
