package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"st1ne-assistant/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== Up/Down Bot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit risk knobs")
		fmt.Println("3) Edit markets and entry filter")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch bot")
		fmt.Println("6) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editRisk(reader, cfg)
		case "3":
			editMarkets(reader, cfg)
		case "4":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launchBot(reader)
		case "6":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Mode: %s | venue: %s | feeds: %s\n", cfg.Risk.Mode, cfg.Execution.Venue, cfg.Feeds.Provider)
	fmt.Printf("Per-trade notional cap: $%.2f\n", cfg.Risk.MaxNotionalPerTrade)
	fmt.Printf("Per-market position cap: $%.2f\n", cfg.Risk.MaxPosition)
	fmt.Printf("Daily loss limit: $%.2f\n", cfg.Risk.MaxDailyLoss)
	fmt.Printf("Cooldown: %s\n", cfg.Risk.Cooldown())
	fmt.Printf("Exits: take profit +%.2f | stop loss -%.2f | %ds before resolution\n", cfg.Risk.TakeProfit, cfg.Risk.StopLoss, cfg.Risk.DeadlineLeadSecs)
	fmt.Println("Coins:", strings.Join(coinNames(cfg), ", "))
	fmt.Println("Timeframes:", strings.Join(timeframeNames(cfg), ", "))
	e := cfg.Strategy.Entry
	fmt.Printf("Entry: score >= %d | OBI > %.2f | price %.2f-%.2f\n", e.MinScore, e.OBIThreshold, e.PriceMin, e.PriceMax)
}

func editRisk(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Risk ---")
	cfg.Risk.Mode = promptString(reader, "Mode (dry-run|live)", cfg.Risk.Mode)
	cfg.Risk.MaxNotionalPerTrade = promptFloat(reader, "Max notional per trade (USD)", cfg.Risk.MaxNotionalPerTrade)
	cfg.Risk.MaxPosition = promptFloat(reader, "Max position per market (USD)", cfg.Risk.MaxPosition)
	cfg.Risk.MaxDailyLoss = promptFloat(reader, "Max daily loss (USD)", cfg.Risk.MaxDailyLoss)
	cfg.Risk.CooldownSecs = int(promptFloat(reader, "Cooldown (seconds)", float64(cfg.Risk.CooldownSecs)))
	cfg.Risk.TakeProfit = promptFloat(reader, "Take profit (price delta)", cfg.Risk.TakeProfit)
	cfg.Risk.StopLoss = promptFloat(reader, "Stop loss (price delta)", cfg.Risk.StopLoss)
}

func editMarkets(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Markets ---")
	fmt.Printf("Current coins: %s\n", strings.Join(coinNames(cfg), ", "))
	fmt.Print("Enter coins comma-separated (blank to keep): ")
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Markets.Coins = nil
		for _, p := range strings.Split(strings.TrimSpace(line), ",") {
			if name := strings.ToUpper(strings.TrimSpace(p)); name != "" {
				// symbol and slugs are derived on the next load
				cfg.Markets.Coins = append(cfg.Markets.Coins, config.Coin{Name: name})
			}
		}
	}
	fmt.Printf("Current timeframes: %s\n", strings.Join(timeframeNames(cfg), ", "))
	fmt.Print("Enter timeframes comma-separated (blank to keep): ")
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Markets.Timeframes = nil
		for _, p := range strings.Split(strings.TrimSpace(line), ",") {
			if name := strings.TrimSpace(p); name != "" {
				cfg.Markets.Timeframes = append(cfg.Markets.Timeframes, config.Timeframe{Name: name})
			}
		}
	}
	cfg.Strategy.Entry.MinScore = int(promptFloat(reader, "Min score", float64(cfg.Strategy.Entry.MinScore)))
	cfg.Strategy.Entry.OBIThreshold = promptFloat(reader, "OBI threshold", cfg.Strategy.Entry.OBIThreshold)
	cfg.Strategy.Entry.PriceMin = promptFloat(reader, "Min entry price", cfg.Strategy.Entry.PriceMin)
	cfg.Strategy.Entry.PriceMax = promptFloat(reader, "Max entry price", cfg.Strategy.Entry.PriceMax)
}

func coinNames(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.Markets.Coins))
	for _, c := range cfg.Markets.Coins {
		out = append(out, c.Name)
	}
	return out
}

func timeframeNames(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.Markets.Timeframes))
	for _, tf := range cfg.Markets.Timeframes {
		out = append(out, tf.Name)
	}
	return out
}

func launchBot(reader *bufio.Reader) {
	fmt.Println("Launching bot (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/bot")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start bot: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the bot and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return current
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
