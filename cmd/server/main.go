// Package main is the entry point for the astrohub server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"runtime"

	"github.com/CageChen/astrohub/internal/astrofile"
	"github.com/CageChen/astrohub/internal/collection"
	"github.com/CageChen/astrohub/internal/config"
	"github.com/CageChen/astrohub/internal/handler"
	"github.com/CageChen/astrohub/internal/watcher"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("astrohub - FITS collection browser")
	log.Printf("Config file: %s", cfg.GetConfigFilePath())
	if cfg.GitRef != "" {
		log.Printf("Collecting %q from %s (git ref: %s)", cfg.Pattern, cfg.Root, cfg.GitRef)
	} else {
		log.Printf("Collecting %q", cfg.Pattern)
	}

	fsys := handler.FileSystemFor(cfg)
	c, err := collection.New(fsys, cfg.Pattern, astrofile.NewOpener(cfg.Extensions), collection.WithSkip(cfg.IsExcluded))
	if err != nil {
		log.Fatalf("Failed to build collection: %v", err)
	}
	coll := collection.NewSynced(c)
	if len(cfg.SortFields) > 0 {
		if err := coll.Sort(context.Background(), cfg.SortFields...); err != nil {
			if !errors.Is(err, collection.ErrInvalidArgument) {
				log.Fatalf("Failed to sort collection: %v", err)
			}
			log.Printf("Warning: %v", err)
		}
	}
	log.Printf("Loaded %d file(s)", coll.Len(context.Background()))

	gin.SetMode(gin.ReleaseMode)
	r, wsHandler := handler.NewRouter(cfg, fsys, coll)

	// Git refs are immutable, so only local folders are watched
	if cfg.Watch && cfg.GitRef == "" {
		w, err := watcher.New(cfg)
		if err != nil {
			log.Printf("Warning: failed to create file watcher: %v", err)
		} else {
			w.OnChange(wsHandler.OnFileChange)
			if err := w.Start(); err != nil {
				log.Printf("Warning: failed to start file watcher: %v", err)
			}
			defer func() { _ = w.Stop() }()
			log.Printf("File watcher enabled")
		}
	}

	if cfg.Open {
		go openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
	}

	log.Printf("Server starting at: http://localhost:%d", cfg.Port)
	addr := fmt.Sprintf(":%d", cfg.Port)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		cmd = "open"
		args = []string{url}
	default: // linux, etc.
		cmd = "xdg-open"
		args = []string{url}
	}

	_ = exec.Command(cmd, args...).Start()
}
