// Command watch is a terminal view of the pipeline dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/timmy/reelforge/internal/client"
)

func main() {
	baseURL := flag.String("url", envOr("REELFORGE_URL", "http://localhost:8080"), "Pipeline API base URL")
	interval := flag.Duration("interval", client.SummaryPoll.Interval, "Refresh interval")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := client.New(*baseURL, *timeout)
	opts := client.SummaryPoll
	opts.Interval = *interval

	m := newModel(ctx, *baseURL, api, opts)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "watch:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
