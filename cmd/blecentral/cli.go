package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/adv"
	"github.com/rigado/blecentral/config"
	"github.com/rigado/blecentral/manager"
	"github.com/rigado/blecentral/metrics"
	"github.com/rigado/blecentral/scenario"
	"github.com/rigado/blecentral/sim"
)

// These values are set at compile-time.
var (
	Version  = "dev"
	Revision = ""
)

// Run runs the commandline application.
func Run() error {
	return newApp().Run(os.Args)
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "blecentral",
		Usage:                "Phone session manager for a BLE central.",
		Version:              Version + " (" + Revision + ")",
		Description:          "Plays a scenario of advertising phones against the session manager on a simulated radio.",
		EnableBashCompletion: true,
		Suggest:              true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"BLECENTRAL_CONFIG"},
				Usage:   "Load settings from an HJSON file.",
			},
			&cli.StringFlag{
				Name:    "scenario",
				Aliases: []string{"s"},
				EnvVars: []string{"BLECENTRAL_SCENARIO"},
				Usage:   "Scenario file to play.",
			},
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				EnvVars: []string{"BLECENTRAL_DURATION"},
				Usage:   "Minimum run time. The run lasts at least as long as the timeline.",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"o"},
				EnvVars: []string{"BLECENTRAL_REPORT"},
				Usage:   "Write the run report to a file instead of the screen.",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Aliases: []string{"m"},
				EnvVars: []string{"BLECENTRAL_METRICS_ADDR"},
				Usage:   "Serve prometheus metrics on this address during the run. (For example, ':9100')",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				EnvVars: []string{"BLECENTRAL_LOG_LEVEL"},
				Usage:   "Log level. (trace, debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "service-uuid",
				EnvVars: []string{"BLECENTRAL_SERVICE_UUID"},
				Usage:   "Service advertised by phones of interest.",
			},
			&cli.StringFlag{
				Name:    "background-mask",
				EnvVars: []string{"BLECENTRAL_BACKGROUND_MASK"},
				Usage:   "Hex mask of the service bit in the iOS overflow area.",
			},
			&cli.StringFlag{
				Name:    "write-characteristic",
				EnvVars: []string{"BLECENTRAL_WRITE_CHARACTERISTIC"},
				Usage:   "Characteristic the central writes to.",
			},
			&cli.StringFlag{
				Name:    "read-characteristic",
				EnvVars: []string{"BLECENTRAL_READ_CHARACTERISTIC"},
				Usage:   "Characteristic the phone notifies on.",
			},
			&cli.BoolFlag{
				Name:    "accept-unknown",
				EnvVars: []string{"BLECENTRAL_ACCEPT_UNKNOWN"},
				Usage:   "Connect to connectable devices that advertise no services.",
			},
			&cli.BoolFlag{
				Name:    "generate",
				Aliases: []string{"g"},
				Usage:   "Write the effective settings to the config file and exit.",
				Action: func(cliCtx *cli.Context, _ bool) error {
					cliCtx.Command.Name = "global"

					path := cliCtx.String("config")
					if path == "" {
						path = config.FileName
					}
					load := path
					if _, err := os.Stat(path); err != nil {
						load = ""
					}

					v, err := config.Load(koanf.New("."), load, cliCtx)
					if err != nil {
						return err
					}
					if err := config.Generate(path, v); err != nil {
						return err
					}
					printInfo("configuration written to " + path)
					return nil
				},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "Decode an advertisement and show how it would be admitted.",
				ArgsUsage: "<adv-hex> [scan-response-hex]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Value: "00:00:00:00:00:00",
						Usage: "Advertiser address.",
					},
					&cli.IntFlag{
						Name:  "rssi",
						Value: -60,
						Usage: "Signal strength.",
					},
					&cli.BoolFlag{
						Name:  "non-connectable",
						Usage: "Treat the advertisement as non-connectable.",
					},
				},
				Action: decode,
			},
		},
		Action: func(cliCtx *cli.Context) error {
			if cliCtx.Bool("generate") {
				return nil
			}

			// required for koanf to merge all global flags under the root namespace.
			cliCtx.Command.Name = "global"

			v, err := config.Load(koanf.New("."), cliCtx.String("config"), cliCtx)
			if err != nil {
				return err
			}
			return run(cliCtx, v)
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}

			printError(err)
		},
	}
}

func run(cliCtx *cli.Context, v config.Values) error {
	if err := central.SetLogLevel(v.LogLevel); err != nil {
		return err
	}
	if v.Scenario == "" {
		return errors.New("no scenario given, see --scenario")
	}

	sc, err := scenario.Load(v.Scenario)
	if err != nil {
		return err
	}
	d, err := v.Profile()
	if err != nil {
		return err
	}

	radio := sim.NewRadio()
	defer radio.Shutdown()
	if err := sc.Setup(radio, d); err != nil {
		return err
	}

	col := metrics.New()
	m, err := manager.New(v.Manager(), radio, radio, append(v.Options(), central.OptObserver(col))...)
	if err != nil {
		return err
	}
	rec := scenario.NewRecorder()
	m.RegisterListener(rec)

	dur := v.Duration
	if sc.Duration() > dur {
		dur = sc.Duration()
	}

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, dur)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if v.MetricsAddr != "" {
		srv := &http.Server{Addr: v.MetricsAddr, Handler: col.Handler()}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
		printInfo("serving metrics on " + v.MetricsAddr)
	}

	if err := m.Start(); err != nil {
		return err
	}
	radio.Settle()
	printInfo(fmt.Sprintf("playing %q for %v", sc.Name, dur))

	g.Go(func() error {
		if err := sc.Play(gctx, radio, m, d); err != nil && gctx.Err() == nil {
			return err
		}
		<-gctx.Done()
		return nil
	})
	runErr := g.Wait()

	radio.Settle()
	connected := m.ConnectedDevices()
	rep := scenario.NewReport(sc.Name, rec, m, radio)
	m.Stop()
	radio.Settle()
	rep.Radio = radio.Stats()

	printInfo(fmt.Sprintf("%d identified: %s", len(connected), strings.Join(connected, ", ")))
	if n := len(rep.Ignored); n > 0 {
		printWarn(fmt.Sprintf("%d ignored: %s", n, strings.Join(rep.Ignored, ", ")))
	}

	if v.Report != "" {
		if err := rep.Save(v.Report); err != nil {
			return err
		}
		printInfo("report written to " + v.Report)
	} else {
		out, err := jsoniter.MarshalIndent(rep, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode report")
		}
		fmt.Fprintln(cliCtx.App.Writer, string(out))
	}

	return runErr
}

func decode(cliCtx *cli.Context) error {
	if cliCtx.NArg() == 0 || cliCtx.NArg() > 2 {
		return errors.New("expected advertising data and an optional scan response, in hex")
	}

	var data [][]byte
	for _, s := range cliCtx.Args().Slice() {
		b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
		if err != nil {
			return errors.Wrapf(err, "invalid hex %q", s)
		}
		data = append(data, b)
	}

	a, err := adv.Decode(central.NewAddr(cliCtx.String("addr")), !cliCtx.Bool("non-connectable"), cliCtx.Int("rssi"), data...)
	if err != nil {
		return err
	}

	v, err := config.Load(koanf.New("."), cliCtx.String("config"), nil)
	if err != nil {
		return err
	}
	radio := sim.NewRadio()
	defer radio.Shutdown()
	m, err := manager.New(v.Manager(), radio, radio, v.Options()...)
	if err != nil {
		return err
	}

	decision := m.Decide(a)
	out := a.ToMap()
	out["decision"] = decision.String()
	out["accepted"] = decision.Accepted()

	b, err := jsoniter.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode advertisement")
	}
	fmt.Fprintln(cliCtx.App.Writer, string(b))
	return nil
}
