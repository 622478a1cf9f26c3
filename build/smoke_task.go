package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/goyek/goyek/v2"
)

// Smoke sends one chat message to a running payagent server and
// prints the SSE events as they arrive. Useful for eyeballing the
// stream shape without a dashboard in front of it.
var Smoke = goyek.Define(goyek.Task{
	Name:  "smoke",
	Usage: "Send a chat message to a running server. Use -addr=URL [-message='...']",
	Action: func(a *goyek.A) {
		body, err := json.Marshal(map[string]string{"message": *smokeMsg})
		if err != nil {
			a.Fatalf("Failed to marshal request: %v", err)
		}

		client := &http.Client{Timeout: 5 * time.Minute}
		resp, err := client.Post(*serverAddr+"/api/chat", "application/json", bytes.NewReader(body))
		if err != nil {
			a.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			a.Fatalf("Unexpected status: %s", resp.Status)
		}

		fmt.Printf("> %s\n\n", *smokeMsg)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if line != "" {
				fmt.Println(line)
			}
		}
		if err := scanner.Err(); err != nil {
			a.Fatalf("Stream read failed: %v", err)
		}
	},
})
