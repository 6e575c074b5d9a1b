package main

import "tradegateway/cmd/cli"

func main() {
	cli.Execute()
}
