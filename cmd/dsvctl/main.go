// dsvctl is the command-line client for dsvd: it reads Vault statistics
// from a running daemon and can also run a standalone scatter/gather
// demo without one.
package main

import "github.com/phantommesh/dsv/cmd/dsvctl/commands"

func main() {
	commands.Execute()
}
