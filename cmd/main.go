package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ablemap/config"
	telegram "ablemap/internal/api"
	app "ablemap/internal/application"
	"ablemap/internal/container"
	"ablemap/internal/infrastructure/logging"
)

func main() {
	imagePath := flag.String("image", "", "Assess a single image")
	dirPath := flag.String("dir", "", "Assess every image in a directory (defaults to IMAGES_DIR)")
	outputDir := flag.String("output", "", "Directory for overlays and reports (overrides OVERLAY_DIR and REPORTS_DIR)")
	sendToAPI := flag.Bool("api", false, "Send reports to the report API")
	testAPI := flag.Bool("test", false, "Check the report API connection and exit")
	runBot := flag.Bool("bot", false, "Run the Telegram bot")
	history := flag.Int("history", 0, "Print the N most recent stored reports and exit")
	flag.Parse()

	// Registered first so it runs after every other deferred cleanup.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	mode := config.ModeCLI
	if *runBot {
		mode = config.ModeBot
	}
	if err := cfg.Validate(mode); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, logCloser := logging.Open(cfg.LogFile, "ablemap ")
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.Build(ctx, cfg, logger, container.Options{OutputDir: *outputDir, SendToAPI: *sendToAPI})
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Close(shutdownCtx); err != nil {
			logger.Printf("close: %v", err)
		}
	}()

	if err := run(ctx, c, cfg, logger, *imagePath, *dirPath, *testAPI, *runBot, *history); err != nil {
		logger.Printf("%v", err)
		fmt.Fprintln(os.Stderr, err)
		exitCode = 1
	}
}

func run(ctx context.Context, c *container.Container, cfg *config.Config, logger *logging.Logger, imagePath, dirPath string, testAPI, runBot bool, history int) error {
	svc := c.AssessmentService

	switch {
	case testAPI:
		if err := svc.PingReportAPI(ctx); err != nil {
			return fmt.Errorf("report API connection failed: %w", err)
		}
		fmt.Println("Report API connection OK")
		return nil

	case history > 0:
		reports, err := svc.Recent(ctx, history)
		if err != nil {
			return err
		}
		for _, r := range reports {
			fmt.Printf("%s  %s  score=%d  final=%.1f  %s\n",
				r.Timestamp.Format(time.RFC3339), r.ID, r.Accessibility.Score, r.FinalScore(), r.ImagePath)
		}
		return nil

	case runBot:
		bot, err := telegram.NewBot(cfg.TelegramToken, c, logger)
		if err != nil {
			return fmt.Errorf("create bot: %w", err)
		}
		logger.Printf("Bot is running...")
		return bot.Run(ctx)

	case imagePath != "":
		report, err := svc.ProcessImage(ctx, imagePath)
		if err != nil {
			return err
		}
		fmt.Printf("Score: %d/10  %s\nOverlay: %s\n", report.Accessibility.Score, report.Explanation, report.OverlayPath)
		return nil

	default:
		if dirPath == "" {
			dirPath = cfg.ImagesDir
		}
		res, err := svc.ProcessDirectory(ctx, dirPath)
		if err != nil {
			return err
		}
		printSummary(res)
		return nil
	}
}

func printSummary(res *app.BatchResult) {
	for _, o := range res.Outcomes {
		if o.Err != nil {
			fmt.Printf("FAIL  %s: %v\n", o.Path, o.Err)
			continue
		}
		fmt.Printf("OK    %s: %d/10\n", o.Path, o.Report.Accessibility.Score)
	}
	s := res.Summary
	fmt.Printf("\n%d images, %d succeeded, %d failed, mean score %.2f (stddev %.2f)\n",
		s.Total, s.Succeeded, s.Failed, s.MeanScore, s.StdDevScore)
}
