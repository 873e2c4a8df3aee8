package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/codemusic/safetyscribe/internal/api"
	"github.com/codemusic/safetyscribe/internal/button"
	"github.com/codemusic/safetyscribe/internal/capture"
	"github.com/codemusic/safetyscribe/internal/config"
	"github.com/codemusic/safetyscribe/internal/health"
	"github.com/codemusic/safetyscribe/internal/hw"
	"github.com/codemusic/safetyscribe/internal/journal"
	"github.com/codemusic/safetyscribe/internal/led"
	sslog "github.com/codemusic/safetyscribe/internal/log"
	"github.com/codemusic/safetyscribe/internal/playback"
	"github.com/codemusic/safetyscribe/internal/proc"
	"github.com/codemusic/safetyscribe/internal/session"
	"github.com/codemusic/safetyscribe/internal/tone"
	"github.com/codemusic/safetyscribe/internal/uplink"
)

var (
	version   = "v1.2.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	noSFX := flag.Bool("no-sfx", false, "disable synthetic sounds")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	sslog.Configure(sslog.Config{Level: "info", Service: "safetyscribe", Version: version})
	logger := sslog.WithComponent("daemon")

	effectivePath := *configPath
	if effectivePath == "" {
		effectivePath = config.ParseString("SS_CONFIG", "")
	}

	cfg, err := config.Load(effectivePath)
	if err != nil {
		logger.Fatal().Err(err).Str("config_path", effectivePath).Msg("failed to load configuration")
	}
	if *noSFX {
		cfg.SFXEnabled = false
	}

	sslog.Configure(sslog.Config{
		Level:   cfg.LogLevel,
		File:    cfg.LogPath,
		Service: "safetyscribe",
		Version: version,
	})

	logger.Info().
		Str(sslog.FieldEvent, sslog.EventStartup).
		Str("version", version).
		Str(sslog.FieldDevice, cfg.AudioDevice).
		Int(sslog.FieldSampleRate, cfg.SampleRate).
		Int(sslog.FieldChannels, cfg.Channels).
		Bool("sfx", cfg.SFXEnabled).
		Bool("debug", cfg.Debug).
		Msg("starting safetyscribe")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.RecsDir, 0o750); err != nil {
		logger.Fatal().Err(err).Str(sslog.FieldPath, cfg.RecsDir).Msg("cannot create recordings directory")
	}

	// Journal is best-effort: the voice loop runs without it.
	var store *journal.Store
	if cfg.JournalDir != "" {
		if err := os.MkdirAll(cfg.JournalDir, 0o750); err == nil {
			store, err = journal.Open(cfg.JournalDir)
			if err != nil {
				logger.Warn().Err(err).Msg("journal disabled, store open failed")
			}
		}
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	var bus led.Bus = hw.NullBus{}
	if cfg.LEDDevice != "" {
		devBus, err := hw.OpenDevBus(cfg.LEDDevice)
		if err != nil {
			logger.Warn().Err(err).Str(sslog.FieldPath, cfg.LEDDevice).Msg("led device unavailable, lights disabled")
		} else {
			bus = devBus
			defer func() { _ = devBus.Close() }()
		}
	}
	animator := led.New(bus, cfg.LEDBrightness)

	runner := proc.ExecRunner{}
	recorder := capture.New(runner, capture.Options{
		Device:       cfg.AudioDevice,
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.Channels,
		SampleFormat: cfg.SampleFormat,
		StopGrace:    cfg.StopGrace,
	})
	play := playback.New(runner, playback.Options{Device: cfg.AudioDevice, StopGrace: cfg.StopGrace})
	cues := tone.NewPlayer(runner, tone.Options{
		Device:     cfg.AudioDevice,
		SampleRate: cfg.SampleRate,
		Enabled:    cfg.SFXEnabled,
		StopGrace:  cfg.StopGrace,
	})
	client := uplink.New(uplink.Options{
		Endpoint:      cfg.Endpoint,
		Host:          cfg.NetHost,
		Port:          cfg.NetPort,
		UploadTimeout: cfg.UploadTimeout,
		FetchTimeout:  cfg.FetchTimeout,
	})

	line := &hw.SysfsLine{Path: cfg.ButtonPath, ActiveLow: true}
	watcher := button.NewWatcher(
		&button.PollingSource{Read: line.Level},
		cfg.DebounceWindow,
		cfg.DoubleTapWindow,
	)

	// Separate variables keep the typed-nil guard intact when the store is
	// disabled.
	var jr api.JournalReader
	var sessionJournal session.Journal
	if store != nil {
		jr = store
		sessionJournal = store
	}

	orch := session.New(session.Deps{
		Buttons:  watcher.Events(),
		Capture:  recorder,
		Playback: play,
		Client:   client,
		Lights:   animator,
		Cues:     cues,
		Journal:  sessionJournal,
	}, session.Options{
		RecsDir:       cfg.RecsDir,
		ShutdownGrace: cfg.StopGrace,
	})

	mgr := health.NewManager(version)
	mgr.RegisterChecker(health.NewBinaryChecker("recorder", "arecord"))
	mgr.RegisterChecker(health.NewBinaryChecker("player", "aplay"))
	mgr.RegisterChecker(health.NewDirChecker("recordings_dir", cfg.RecsDir))
	mgr.RegisterChecker(health.NewEndpointChecker(cfg.NetHost, strconv.Itoa(cfg.NetPort)))
	mgr.RegisterChecker(health.NewSessionChecker(func() string { return orch.State().String() }))
	srv := api.NewServer(api.Options{Listen: cfg.Listen, Version: version}, mgr,
		func() string { return orch.State().String() }, orch.LastInstruction, jr)

	// Hot reload: brightness and log level apply live, everything else on
	// next restart.
	holder := config.NewHolder(cfg, effectivePath)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("config watcher not started")
	}
	reloads := make(chan config.Config, 1)
	holder.Subscribe(reloads)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-reloads:
				animator.SetBrightness(next.LEDBrightness)
			}
		}
	}()

	// The animator and cue player outlive the signal context so the
	// shutdown tone and LED blank can still happen.
	auxCtx, auxCancel := context.WithCancel(context.Background())

	var g errgroup.Group
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error { return animator.Run(auxCtx) })
	g.Go(func() error { return cues.Run(auxCtx) })
	g.Go(func() error {
		err := srv.Run(ctx)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			// A dead local API should take the daemon down cleanly.
			stop()
		}
		return err
	})
	g.Go(func() error {
		err := orch.Run(ctx)
		auxCancel()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
	logger.Info().Str(sslog.FieldEvent, sslog.EventShutdown).Msg("safetyscribe stopped")
}
