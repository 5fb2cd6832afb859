package main

import "github.com/smallbiznis/studioledger/cmd/studioledgerctl/cmd"

func main() {
	cmd.Execute()
}
