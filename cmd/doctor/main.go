// Command doctor checks that every configured n8n instance is reachable
// with its API key by fetching the first page of workflows.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"n8n-mcp-bridge/internal/config"
	"n8n-mcp-bridge/internal/logging"
	"n8n-mcp-bridge/internal/n8n"
	"n8n-mcp-bridge/internal/registry"
)

func main() {
	logger := logging.NewLogger()

	envFile := flag.String("env", "", "Path to .env file")
	flag.Parse()

	_, v, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	instances := registry.Load(v, logger)
	reg := registry.New(instances, logger)
	if reg.Count() == 0 {
		log.Fatal("No n8n instances configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := 0
	for _, inst := range reg.Instances() {
		client := n8n.NewClient(inst)
		list, err := client.ListWorkflows(ctx, n8n.ListWorkflowsOptions{Limit: 1})
		if err != nil {
			logger.Error("%s (%s): unreachable: %v", inst.Name, inst.URL, err)
			failed++
			continue
		}
		logger.Info("%s (%s): reachable, %d workflow(s) on first page", inst.Name, inst.URL, len(list.Data))
	}

	if failed > 0 {
		os.Exit(1)
	}
}
