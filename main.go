package main

import "github.com/yellowpay/payagent/cmd"

func main() {
	cmd.Execute()
}
