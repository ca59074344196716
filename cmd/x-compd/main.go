package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ItsNotGoodName/x-compd/internal/api"
	"github.com/ItsNotGoodName/x-compd/internal/build"
	"github.com/ItsNotGoodName/x-compd/internal/bus"
	"github.com/ItsNotGoodName/x-compd/internal/comp"
	"github.com/ItsNotGoodName/x-compd/internal/config"
	"github.com/ItsNotGoodName/x-compd/internal/rules"
	"github.com/ItsNotGoodName/x-compd/pkg/sutureext"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/phsym/console-slog"
)

type Options struct {
	Debug   bool   `doc:"enable debug logging"`
	Display string `doc:"X display to connect to, defaults to $DISPLAY"`
	HTTP    string `doc:"inspection API listen address, overrides config"`
	Config  string `doc:"config file" default:".x-compd.yaml"`
}

func main() {
	godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		if options.Debug {
			InitLogger(slog.LevelDebug)
		} else {
			InitLogger(slog.LevelInfo)
		}

		OnServe(hooks, func(ctx context.Context) error {
			bus.SetContext(ctx)

			configFilePath, err := filepath.Abs(options.Config)
			if err != nil {
				return err
			}

			store, err := config.NewStore(config.NewFileDriver(configFilePath))
			if err != nil {
				return err
			}
			cfg, err := store.GetConfig()
			if err != nil {
				return err
			}
			if options.Display != "" {
				cfg.Display = options.Display
			}
			if options.HTTP != "" {
				cfg.HTTP.Enabled = true
				cfg.HTTP.Address = options.HTTP
			}

			matcher, err := rules.Compile(cfg)
			if err != nil {
				return err
			}

			session, conn, eventC, err := comp.Bootstrap(cfg, matcher)
			if err != nil {
				return err
			}
			defer conn.Close()
			defer conn.Unredirect()

			go comp.ReceiveEvents(ctx, conn, eventC)

			super := sutureext.NewSimple("x-compd")
			sutureext.Add(super, session)
			if cfg.HTTP.Enabled {
				sutureext.Add(super, api.NewServer(session, &store, cfg.HTTP.Address))
			}

			return super.Serve(ctx)
		})
	})

	cli.Root().Version = build.Current.Version

	cli.Run()
}

func InitLogger(level slog.Level) {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: level,
	})))
}

func OnServe(hooks humacli.Hooks, serveFn func(ctx context.Context) error) {
	stopC := make(chan struct{})
	hooks.OnStart(func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errC := make(chan error, 1)

		go func() { errC <- serveFn(ctx) }()

		select {
		case <-stopC:
			cancel()
		case err := <-errC:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Fatal(err)
			}
			return
		}

		<-errC
		<-stopC
	})
	hooks.OnStop(func() {
		stopC <- struct{}{}
		stopC <- struct{}{}
	})
}
