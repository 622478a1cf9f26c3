package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/goyek/goyek/v2"
)

// DebugProxy starts an HTTP debug proxy for inspecting model provider
// traffic. Point PAYAGENT_BASE_URL at the proxy and it logs every
// request and response body passing through.
var DebugProxy = goyek.Define(goyek.Task{
	Name:  "debug-proxy",
	Usage: "HTTP debug proxy for provider traffic. Use -target=URL [-port=8080]",
	Action: func(a *goyek.A) {
		if *targetURL == "" {
			a.Fatal("Usage: go run ./build -target=<url> [-port=8080] debug-proxy")
		}

		target, err := url.Parse(*targetURL)
		if err != nil {
			a.Fatalf("Invalid target URL: %v", err)
		}

		proxy := &httputil.ReverseProxy{
			Director: func(req *http.Request) {
				req.URL.Scheme = target.Scheme
				req.URL.Host = target.Host
				req.Host = target.Host
			},
			ModifyResponse: func(resp *http.Response) error {
				fmt.Printf("\n=== RESPONSE %s ===\n", resp.Status)
				if resp.Body == nil {
					return nil
				}
				body, err := io.ReadAll(resp.Body)
				if err != nil {
					return err
				}
				resp.Body.Close()

				if resp.Header.Get("Content-Encoding") == "gzip" {
					if reader, err := gzip.NewReader(bytes.NewReader(body)); err == nil {
						body, _ = io.ReadAll(reader)
						reader.Close()
					}
				}
				prettyPrint(body)

				resp.Body = io.NopCloser(bytes.NewReader(body))
				resp.ContentLength = int64(len(body))
				resp.Header.Del("Content-Encoding")
				return nil
			},
		}

		http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Printf("\n[%s] %s %s\n", time.Now().Format("15:04:05"), r.Method, r.URL.Path)
			for k, v := range r.Header {
				val := strings.Join(v, ", ")
				// Redact credentials in the log output.
				if strings.ToLower(k) == "authorization" || strings.ToLower(k) == "x-api-key" {
					if len(val) > 20 {
						val = val[:10] + "..." + val[len(val)-5:]
					}
				}
				fmt.Printf("  %s: %s\n", k, val)
			}

			if r.Body != nil {
				body, err := io.ReadAll(r.Body)
				if err == nil && len(body) > 0 {
					r.Body.Close()
					prettyPrint(body)
					r.Body = io.NopCloser(bytes.NewReader(body))
					r.ContentLength = int64(len(body))
				}
			}

			proxy.ServeHTTP(w, r)
		})

		fmt.Printf("\nDebug proxy listening on http://localhost:%s\n", *port)
		fmt.Printf("  Proxying to: %s\n", target.String())
		fmt.Printf("  Set PAYAGENT_BASE_URL to: http://localhost:%s\n\n", *port)

		if err := http.ListenAndServe(":"+*port, nil); err != nil {
			a.Fatalf("Server error: %v", err)
		}
	},
})

func prettyPrint(data []byte) {
	var obj any
	if err := json.Unmarshal(data, &obj); err == nil {
		pretty, _ := json.MarshalIndent(obj, "  ", "  ")
		fmt.Printf("  %s\n", pretty)
		return
	}
	fmt.Printf("  %s\n", data)
}
