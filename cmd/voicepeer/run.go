package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkeye/VoicePeer/internal/adapters/device"
	router "github.com/dkeye/VoicePeer/internal/adapters/http"
	"github.com/dkeye/VoicePeer/internal/adapters/rtc"
	signaling "github.com/dkeye/VoicePeer/internal/adapters/signal"
	"github.com/dkeye/VoicePeer/internal/app/capture"
	"github.com/dkeye/VoicePeer/internal/app/session"
	"github.com/dkeye/VoicePeer/internal/app/spatial"
	"github.com/dkeye/VoicePeer/internal/audio"
	"github.com/dkeye/VoicePeer/internal/config"
	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/dkeye/VoicePeer/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type runFlags struct {
	configPath string
	token      string
	address    string
	listen     string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the voice client and its local control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			if f.token != "" {
				cfg.Token = f.token
			}
			if f.address != "" {
				cfg.Signal.Address = f.address
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = f.listen
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "config file (default config/config.<CONFIG_ENV>.yaml)")
	cmd.Flags().StringVar(&f.token, "token", "", "join token; joins immediately when set")
	cmd.Flags().StringVar(&f.address, "signal", "", "rendezvous address or ws(s):// URL")
	cmd.Flags().StringVar(&f.listen, "listen", "", `local API address ("" disables)`)
	return cmd
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.Mode == "debug" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

// newAudioContext creates the render context together with its output sink;
// closing the context stops the sink.
func newAudioContext(cfg *config.Config) core.AudioContextFactory {
	return func() (core.AudioContext, error) {
		ac := audio.NewContext(cfg.Audio.SampleRate)
		var out device.Output
		if cfg.Audio.Output == config.DeviceNone {
			out = device.StartNullOutput(cfg.Audio.SampleRate, cfg.Audio.FrameMs, ac)
		} else {
			spk, err := device.StartSpeaker(cfg.Audio.SampleRate, ac, func() {
				log.Warn().Str("module", "device").Msg("speaker stopped")
			})
			if err != nil {
				_ = ac.Close()
				return nil, err
			}
			out = spk
		}
		ac.OnClose(out.Close)
		return ac, nil
	}
}

func newMicrophone(cfg *config.Config) core.Microphone {
	if cfg.Audio.Input == config.DeviceNone {
		return &device.SilenceMic{SampleRate: cfg.Audio.SampleRate, FrameMs: cfg.Audio.FrameMs}
	}
	return &device.Microphone{SampleRate: cfg.Audio.SampleRate}
}

func run(ctx context.Context, cfg *config.Config) error {
	setupLogging(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mode, err := domain.ParseDirectionalMode(cfg.Spatial.Mode)
	if err != nil {
		return err
	}
	panning, err := domain.ParsePanningModel(cfg.Spatial.PanningModel)
	if err != nil {
		return err
	}
	engine, err := spatial.NewEngine(newAudioContext(cfg), spatial.Options{
		Stages:       cfg.Spatial.Stages,
		Mode:         mode,
		PanningModel: panning,
		Smoothing:    cfg.Spatial.Smoothing,
		Metrics:      m,
	})
	if err != nil {
		return err
	}

	api, err := rtc.NewAPI()
	if err != nil {
		return err
	}

	store := session.NewStateStore()
	ctrl, err := session.New(session.Config{
		Endpoint: signaling.ResolveEndpoint(cfg.Signal.Address),
		Capture: capture.Config{
			SampleRate: cfg.Audio.SampleRate,
			FrameMs:    cfg.Audio.FrameMs,
			Metrics:    m,
		},
	}, session.Deps{
		Connector: signaling.NewConnector(signaling.Options{
			ReadLimit:    cfg.Signal.ReadLimit,
			WriteTimeout: cfg.Signal.WriteTimeout,
			SendBuffer:   cfg.Signal.SendBuffer,
			Metrics:      m,
		}),
		Microphone:    newMicrophone(cfg),
		NewConnection: rtc.NewFactory(api, rtc.DefaultWebRTCConfig(cfg.ICEServers)),
		Pump:          rtc.NewPump(m),
		Engine:        engine,
		Observer:      session.Observers{store, session.NewLogObserver()},
		Metrics:       m,
	})
	if err != nil {
		return err
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = ctrl.Run(ctx)
	}()
	log.Info().Str("session", ctrl.ID()).Str("version", version).Msg("voicepeer started")

	var srv *http.Server
	if cfg.Listen != "" {
		srv = &http.Server{
			Addr: cfg.Listen,
			Handler: router.SetupRouter(router.RouterConfig{
				Mode:      cfg.Mode,
				Token:     cfg.Token,
				DebugFile: cfg.Debug.File,
				Gatherer:  reg,
			}, ctrl, store),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Listen).Msg("local API started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("server error")
			}
		}()
	}

	if cfg.Token != "" {
		if err := ctrl.StartSession(ctx, cfg.Token); err != nil {
			log.Error().Err(err).Msg("join failed")
		}
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}
	<-loopDone
	log.Info().Msg("voicepeer exited gracefully")
	return nil
}
