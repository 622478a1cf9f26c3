package main

import (
	"flag"

	"github.com/goyek/goyek/v2"
)

// Flags for debug-proxy task
var (
	targetURL = flag.String("target", "", "Target URL to proxy (for debug-proxy)")
	port      = flag.String("port", "8080", "Port to listen on (for debug-proxy)")
)

// Flags for smoke task
var (
	serverAddr = flag.String("addr", "http://localhost:8080", "payagent server address (for smoke)")
	smokeMsg   = flag.String("message", "What are my balances across chains?", "Chat message to send (for smoke)")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		args = []string{"list"}
	}
	goyek.Main(args)
}
