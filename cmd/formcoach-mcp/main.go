package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/formcoach/internal/fitness"
	formcoachmcp "github.com/claude/formcoach/internal/mcp"
	"github.com/claude/formcoach/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	backendURL := flag.String("backend", "http://localhost:5000", "analysis backend URL")
	historyURL := flag.String("history", "", "FormCoach server URL to read analysis history from (optional)")
	databaseURL := flag.String("database-url", "", "PostgreSQL URL of the analysis journal (optional, overrides -history)")
	httpAddr := flag.String("http", "", "serve streamable HTTP on this address instead of stdio")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("formcoach-mcp", Version)
		return
	}

	// stdout carries the stdio transport, so logs go to stderr.
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05",
		NoColor:    true,
	}))

	ctx := context.Background()
	client := fitness.NewClient(*backendURL, 0, log)

	var history formcoachmcp.History
	switch {
	case *databaseURL != "":
		db, err := storage.New(ctx, *databaseURL)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		history = db
	case *historyURL != "":
		history = formcoachmcp.NewHTTPClient(*historyURL)
	}

	s := formcoachmcp.New(client, history, Version, log)

	if *httpAddr != "" {
		log.Info("MCP server starting", "addr", *httpAddr, "backend", *backendURL)
		if err := server.NewStreamableHTTPServer(s).Start(*httpAddr); err != nil {
			log.Error("MCP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	log.Info("MCP server starting on stdio", "backend", *backendURL)
	if err := server.ServeStdio(s); err != nil {
		log.Error("MCP server error", "error", err)
		os.Exit(1)
	}
}
