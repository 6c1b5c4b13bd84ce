// Command sharecheck probes a public share link and reports its
// accessibility, for support staff diagnosing "the link does not work"
// reports without touching the database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type shareInfo struct {
	DocumentTitle    string `json:"document_title"`
	MimeType         string `json:"mime_type"`
	RequiresPassword bool   `json:"requires_password"`
	DownloadCount    int    `json:"download_count"`
	MaxDownloads     *int   `json:"max_downloads"`
	ExpiresAt        string `json:"expires_at"`
	IsActive         bool   `json:"is_active"`
	IsExpired        bool   `json:"is_expired"`
	HasReachedLimit  bool   `json:"has_reached_limit"`
	IsAccessible     bool   `json:"is_accessible"`
}

type infoResponse struct {
	Success bool      `json:"success"`
	Data    shareInfo `json:"data"`
	Error   string    `json:"error"`
}

func main() {
	var (
		baseURL string
		token   string
		timeout time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "Share token (or full share URL)")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if token == "" {
		log.Fatal("a -token is required")
	}
	if idx := strings.LastIndex(token, "/"); idx >= 0 {
		token = token[idx+1:]
	}

	client := &http.Client{Timeout: timeout}
	url := fmt.Sprintf("%s/public/documents/%s", strings.TrimRight(baseURL, "/"), token)

	resp, err := client.Get(url)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var payload infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Fatalf("decode response: %v", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		fmt.Println("share: NOT FOUND (unknown or mistyped token)")
		os.Exit(1)
	}
	if !payload.Success {
		fmt.Printf("share: error: %s (HTTP %d)\n", payload.Error, resp.StatusCode)
		os.Exit(1)
	}

	info := payload.Data
	fmt.Printf("document:          %s (%s)\n", info.DocumentTitle, info.MimeType)
	fmt.Printf("requires password: %t\n", info.RequiresPassword)
	if info.MaxDownloads != nil {
		fmt.Printf("downloads:         %d / %d\n", info.DownloadCount, *info.MaxDownloads)
	} else {
		fmt.Printf("downloads:         %d (no limit)\n", info.DownloadCount)
	}
	if info.ExpiresAt != "" {
		fmt.Printf("expires at:        %s\n", info.ExpiresAt)
	}
	fmt.Printf("active=%t expired=%t limit_reached=%t\n", info.IsActive, info.IsExpired, info.HasReachedLimit)

	if !info.IsAccessible {
		fmt.Println("share: NOT ACCESSIBLE")
		os.Exit(1)
	}
	fmt.Println("share: accessible")
}
