package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/wolfman30/dental-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/dental-scheduler/internal/config"
	"github.com/wolfman30/dental-scheduler/internal/intent"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

var sampleMessages = []string{
	"Hi, can I book a cleaning tomorrow at 2pm? This is Dana",
	"I need to move my appointment to next Friday at 10",
	"please cancel my appointment",
	"do you take Delta Dental?",
	"when is my next visit",
}

// Runs each message (arguments, or a built-in sample) through the configured
// provider and prints the extracted intent.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := bootstrap.BuildLLMClient(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build llm client: %v", err)
	}
	extractor := intent.NewExtractor(client, logger).
		WithTimeout(cfg.LLMTimeout).
		WithLocation(bootstrap.BusinessDay(cfg).Location)

	messages := os.Args[1:]
	if len(messages) == 0 {
		messages = sampleMessages
	}

	fmt.Printf("provider=%s fallback=%s\n", cfg.LLMProvider, cfg.LLMFallbackProvider)
	fmt.Println(strings.Repeat("=", 60))
	for _, msg := range messages {
		start := time.Now()
		in := extractor.ParseIntent(ctx, msg)
		out, _ := json.MarshalIndent(in, "", "  ")
		fmt.Printf("%q (%v)\n%s\n", msg, time.Since(start).Round(time.Millisecond), out)
		fmt.Println(strings.Repeat("-", 60))
	}
}
