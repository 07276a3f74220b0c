package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	repmcp "github.com/claude/repform/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", os.Getenv("REPFORM_SERVER_URL"), "RepForm server URL (e.g. https://repform.tail1234.ts.net)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("repform-mcp", Version)
		return
	}

	if *serverURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: repform-mcp -server <URL>\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("RepForm MCP starting", "version", Version, "server", *serverURL)

	mcpSrv := repmcp.New(repmcp.NewHTTPClient(*serverURL), Version, log)
	if err := server.ServeStdio(mcpSrv); err != nil {
		log.Error("stdio server failed", "error", err)
		os.Exit(1)
	}
}
