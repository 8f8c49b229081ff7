package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crosspost/internal/app"
	"crosspost/internal/config"
	"crosspost/internal/content"
	"crosspost/internal/registry"
)

func main() {
	var (
		cfgPath  string
		itemPath string
		tierName string
		serve    bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.StringVar(&itemPath, "item", "", "path to a content item file (yaml or json)")
	flag.StringVar(&tierName, "tier", "open", "credential tier to distribute to: open or gated")
	flag.BoolVar(&serve, "serve", false, "keep running after the item (report server, sweeps)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tier, err := parseTier(tierName)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	code := 0
	if itemPath != "" {
		item, err := loadItem(itemPath)
		if err != nil {
			fmt.Println("fatal:", err)
			_ = a.Stop(context.Background())
			os.Exit(1)
		}
		rep, err := a.Distribute(ctx, item, tier)
		if rep != nil {
			printReport(rep)
		}
		if err != nil {
			fmt.Println("run error:", err)
			code = 1
		}
	}

	if serve {
		<-ctx.Done()
	}
	_ = a.Stop(context.Background())
	os.Exit(code)
}

func parseTier(name string) (registry.Tier, error) {
	switch name {
	case "open":
		return registry.TierOpen, nil
	case "gated":
		return registry.TierGated, nil
	default:
		return "", fmt.Errorf("unknown tier %q (use open or gated)", name)
	}
}

func loadItem(path string) (content.Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return content.Item{}, err
	}
	jsonBytes, _, err := config.CoerceToJSONBytes(path, raw)
	if err != nil {
		return content.Item{}, err
	}
	var item content.Item
	if err := json.Unmarshal(jsonBytes, &item); err != nil {
		return content.Item{}, fmt.Errorf("%s: %w", path, err)
	}
	return item, nil
}

func printReport(rep *app.RunReport) {
	fmt.Printf("run %s: %d attempted, %d succeeded (%.0f%%), %d failed\n",
		rep.Batch.RunID, rep.Stats.Attempted, rep.Stats.Succeeded,
		rep.Stats.SuccessRatePct, rep.Stats.Failed)
	for id, res := range rep.Batch.Results {
		status := rep.Statuses[id]
		if res.Succeeded {
			fmt.Printf("  %-24s ok    %-14s %s\n", id, status, res.PublishedURL)
		} else {
			fmt.Printf("  %-24s fail  %-14s %s: %s\n", id, status, res.ErrKind, res.Err)
		}
	}
}
