package main

import "github.com/openshift-assisted/fleet-telemetry/cmd/fleet-telemetry/cmd"

func main() {
	cmd.Execute()
}
