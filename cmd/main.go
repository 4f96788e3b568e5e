package main

import (
	"context"
	"flag"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/brettbedarf/sfm/config"
	"github.com/brettbedarf/sfm/internal/util"
	"github.com/brettbedarf/sfm/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command line arguments
	var (
		configPath string
		root       string
		listen     string
		mnt        string
		readOnly   bool
		verbose    int
		umount     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&root, "root", config.DefaultRoot, "Directory to serve")
	flag.StringVar(&root, "r", config.DefaultRoot, "--root (shorthand)")
	flag.StringVar(&listen, "listen", config.DefaultListen, "HTTP listen address; empty disables HTTP")
	flag.StringVar(&listen, "l", config.DefaultListen, "--listen (shorthand)")
	flag.StringVar(&mnt, "mount", "", "Also mount the served tree with FUSE at this path")
	flag.StringVar(&mnt, "m", "", "--mount (shorthand)")
	flag.BoolVar(&readOnly, "read-only", false, "Refuse every mutation")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the mount point first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.IntVar(&verbose, "verbose", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", config.InfoVerbose, "--verbose (shorthand)")
	flag.Parse()

	// Initialize logger
	util.InitializeLogger(util.LevelFromVerbosity(verbose))
	logger := util.GetLogger("main")

	override := &config.ConfigOverride{}
	if configPath != "" {
		fileOverride, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
		override = fileOverride
		logger.Debug().Str("config", configPath).Msg("Config file loaded successfully")
	}

	// Flags given explicitly win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root", "r":
			override.Root = util.Pointer(root)
		case "listen", "l":
			override.Listen = util.Pointer(listen)
		case "mount", "m":
			override.MountPoint = util.Pointer(mnt)
		case "read-only":
			override.ReadOnly = util.Pointer(readOnly)
		case "verbose", "v":
			override.LogLvl = util.Pointer(verbose)
		}
	})

	// Never serve our own artifacts
	override.Hidden = append(override.Hidden, selfArtifacts(configPath)...)

	cfg := config.NewConfig(override)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	util.InitializeLogger(cfg.LogLvl)

	logger.Info().
		Str("root", cfg.Root).
		Str("listen", cfg.Listen).
		Str("mnt", cfg.MountPoint).
		Bool("readOnly", cfg.ReadOnly).
		Msg("SFM server initializing")

	s, err := server.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open root")
	}

	if cfg.MountPoint != "" {
		// Try unmount if requested
		if umount { // send cli command
			cmd := exec.Command("fusermount", "-u", cfg.MountPoint)
			// we ignore error here if not already mounted
			cmd.Run() // nolint:errcheck
		}
		if err := s.Mount(""); err != nil {
			logger.Fatal().Err(err).Msg("Failed to mount filesystem")
		}
	}

	var served <-chan error
	if cfg.Listen != "" {
		served = s.ServeAsync()
	} else if cfg.MountPoint == "" {
		logger.Fatal().Msg("Nothing to serve; set a listen address or a mount point")
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for termination signal or a failed listener
	select {
	case sig := <-signalChan:
		logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
	case err := <-served:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down cleanly")
	} else {
		logger.Info().Msg("Shut down successfully")
	}
}

// selfArtifacts returns the running executable and the config file, both of
// which may live inside the served root.
func selfArtifacts(configPath string) []string {
	var paths []string
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, exe)
	}
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			paths = append(paths, abs)
		}
	}
	return paths
}
