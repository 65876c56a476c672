// Command rdpsim replays memory access traces through set-associative caches
// and compares replacement policies.
package main

import "github.com/sarchlab/rdpcache/cmd/rdpsim/cmd"

func main() {
	cmd.Execute()
}
