// Command redeploy stops a remote service, replaces its files and reinstalls it.
package main

import "github.com/ruffel/redeploy/cmd/redeploy/cmd"

func main() {
	cmd.Execute()
}
