package main

import "github.com/aquasecurity/advisory-aggregator/cmd"

func main() {
	cmd.Execute()
}
