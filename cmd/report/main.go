// Command report runs the report pipeline once for a single asset and prints
// the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"CoinPulse/internal/di"
	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/config"
	applogger "CoinPulse/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env", ".env", "optional dotenv file")
	slug := flag.String("asset", "", "asset slug, e.g. bitcoin")
	to := flag.String("to", "", "comma separated recipients; empty skips email")
	out := flag.String("out", "", "write the PDF to this path")
	flag.Parse()

	if *slug == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	r, err := di.InitializeReporting(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	code := run(r, cfg, *slug, splitRecipients(*to), *out)
	r.Close()
	os.Exit(code)
}

func run(r *di.Reporting, cfg *config.Config, slug string, recipients []string, out string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Report.RunTimeout)
	defer cancel()

	assets, err := r.Directory.FindAssets(ctx, []string{strings.ToLower(slug)})
	if err != nil {
		return emit(models.RunResult{}, err)
	}

	res, err := r.Pipeline.Run(ctx, usecase.ReportRequest{Asset: assets[0], Recipients: recipients})
	if err == nil && out != "" && len(res.PDF) > 0 {
		if werr := os.WriteFile(out, res.PDF, 0o644); werr != nil {
			r.Logger.Error("write pdf failed", applogger.String("path", out), applogger.Error(werr))
		} else {
			r.Logger.Info("pdf written", applogger.String("path", out), applogger.Int("bytes", len(res.PDF)))
		}
	}
	return emit(res, err)
}

func emit(res models.RunResult, err error) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(models.NewReportResponse(res, err)); encErr != nil {
		log.Printf("encode result: %v", encErr)
		return 1
	}
	if err != nil {
		return 1
	}
	return 0
}

func splitRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
