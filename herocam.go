package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/jonas-koeritz/herocam/emulator"
	"github.com/jonas-koeritz/herocam/exporter"
	"github.com/jonas-koeritz/herocam/internal/config"
	"github.com/jonas-koeritz/herocam/internal/logger"
	"github.com/jonas-koeritz/herocam/libgopro"
	"github.com/kardianos/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func createCamera(settings config.Settings, log zerolog.Logger) (*libgopro.Camera, error) {
	camera, err := libgopro.CreateCamera(settings.Host)
	if err != nil {
		return nil, err
	}
	camera.SetLogger(log)
	camera.SetVerbose(settings.Verbose)
	camera.SetLegacyCounters(settings.LegacyCounters)
	camera.SetConnectTimeout(settings.ConnectTimeout)
	if settings.MediaURL != "" {
		camera.SetMediaBaseURL(settings.MediaURL)
	}
	return camera, nil
}

func connectAndLogin(settings config.Settings, log zerolog.Logger) (*libgopro.Camera, error) {
	camera, err := createCamera(settings, log)
	if err != nil {
		return nil, err
	}
	if err = camera.Login(); err != nil {
		return nil, err
	}
	return camera, nil
}

// serviceArguments turns the effective settings into the command line of the
// installed exporter service, flags and environment are gone once it starts
func serviceArguments(settings config.Settings, cfgFile string) []string {
	args := []string{
		"exporter",
		"--host", settings.Host,
		"--listen", settings.ExporterListen,
		"--timeout", settings.ConnectTimeout.String(),
		"--log-level", settings.LogLevel,
	}
	if settings.LogFormat != "" {
		args = append(args, "--log-format", settings.LogFormat)
	}
	if settings.MediaURL != "" {
		args = append(args, "--media-url", settings.MediaURL)
	}
	if settings.Verbose {
		args = append(args, "--verbose")
	}
	if settings.LegacyCounters {
		args = append(args, "--legacy-counters")
	}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	return args
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	var cfgFile string
	var settings config.Settings
	var camera *libgopro.Camera

	var rootCmd = &cobra.Command{
		Use:           "herocam",
		Short:         "herocam controls WiFi action cameras speaking the bacpac HTTP protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(cfgFile); err != nil {
				return fmt.Errorf("reading config: %w", err)
			}
			settings = config.Load()
			logger.Init(settings.LogLevel, settings.LogFormat)
			return nil
		},
	}

	// login runs before every command that needs a session
	login := func(cmd *cobra.Command, args []string) error {
		var err error
		camera, err = connectAndLogin(settings, log.Logger)
		return err
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.herocam.yaml)")
	flags.StringP("host", "H", libgopro.DefaultHost, "Camera address")
	flags.String("media-url", "", "Base URL of the media server (default http://<host>:8080)")
	flags.Duration("timeout", libgopro.DefaultConnectTimeout, "Connect timeout")
	flags.BoolP("verbose", "v", false, "Print verbose output")
	flags.Bool("legacy-counters", false, "Decode status counters without zero padding like older camera apps")
	flags.Bool("json", false, "Output results as JSON")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error, disabled)")
	flags.String("log-format", "", "Log format (color, text, json)")

	for key, flag := range map[string]string{
		config.KeyHost:           "host",
		config.KeyMediaURL:       "media-url",
		config.KeyConnectTimeout: "timeout",
		config.KeyVerbose:        "verbose",
		config.KeyLegacyCounters: "legacy-counters",
		config.KeyJSON:           "json",
		config.KeyLogLevel:       "log-level",
		config.KeyLogFormat:      "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	var status = &cobra.Command{
		Use:     "status",
		Short:   "Show mode, battery, SD-Card counters and recording state",
		Args:    cobra.NoArgs,
		PreRunE: login,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := camera.GetStatus()
			if err != nil {
				return fmt.Errorf("retrieving status: %w", err)
			}
			if settings.JSON {
				return printJSON(status.Fields())
			}

			fields := status.Fields()
			names := make([]string, 0, len(fields))
			for name := range fields {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range names {
				if name == "MenuItem" {
					fmt.Fprintf(w, "%s\t%d (%s)\n", name, fields[name], status.MenuItem)
					continue
				}
				fmt.Fprintf(w, "%s\t%d\n", name, fields[name])
			}
			return w.Flush()
		},
	}

	var info = &cobra.Command{
		Use:   "info",
		Short: "Retrieve camera name and firmware version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			camera, err := createCamera(settings, log.Logger)
			if err != nil {
				return err
			}
			info, err := camera.GetDeviceInfo()
			if err != nil {
				return fmt.Errorf("retrieving device info: %w", err)
			}
			if settings.JSON {
				return printJSON(info)
			}
			fmt.Printf("Name:\t%s\nFirmware:\t%s\n", info.Name, info.Firmware)
			return nil
		},
	}

	var mode = &cobra.Command{
		Use:       "mode [video|photo|burst|timelapse]",
		Short:     "Switch the capture mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: libgopro.SelectableModes(),
		PreRunE:   login,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := libgopro.ParseMode(args[0])
			if err != nil {
				return err
			}
			if err = camera.SetMode(mode); err != nil {
				return fmt.Errorf("switching to %s mode: %w", mode, err)
			}
			log.Info().Stringer("mode", mode).Msg("Mode changed")
			return nil
		},
	}

	var shutter = &cobra.Command{
		Use:     "shutter",
		Short:   "Fire the shutter, starts recording in video mode",
		Args:    cobra.NoArgs,
		PreRunE: login,
		RunE: func(cmd *cobra.Command, args []string) error {
			return camera.Shutter()
		},
	}

	var stop = &cobra.Command{
		Use:     "stop",
		Short:   "Stop the current capture",
		Args:    cobra.NoArgs,
		PreRunE: login,
		RunE: func(cmd *cobra.Command, args []string) error {
			return camera.Stop()
		},
	}

	var ls = &cobra.Command{
		Use:   "ls",
		Short: "List files stored on the cameras SD-Card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			camera, err := createCamera(settings, log.Logger)
			if err != nil {
				return err
			}
			files, err := camera.GetMediaList()
			if err != nil {
				return fmt.Errorf("receiving file list: %w", err)
			}
			if settings.JSON {
				return printJSON(files)
			}
			for _, file := range files {
				fmt.Printf("%s\t%d\n", file.Path, file.Size)
			}
			return nil
		},
	}

	var fetch = &cobra.Command{
		Use:   "fetch [destination directory]",
		Short: "Download the newest file from the cameras SD-Card",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			camera, err := createCamera(settings, log.Logger)
			if err != nil {
				return err
			}
			files, err := camera.GetMediaList()
			if err != nil {
				return fmt.Errorf("receiving file list: %w", err)
			}
			if len(files) == 0 {
				return errors.New("no files stored on the camera")
			}

			directory := "."
			if len(args) == 1 {
				directory = args[0]
			}
			newest := files[len(files)-1]
			destination := filepath.Join(directory, filepath.Base(newest.Path))
			log.Info().Str("file", newest.Path).Str("destination", destination).Msg("Downloading latest file")
			return camera.DownloadFile(newest, destination)
		},
	}

	var discover = &cobra.Command{
		Use:   "discover",
		Short: "Check whether a camera access point is connected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := libgopro.AutodiscoverCamera()
			if err != nil {
				return err
			}
			fmt.Println(host)
			return nil
		},
	}

	var emulateIP string
	var emulatePort int
	var emulateState = emulator.DefaultState()

	var emulate = &cobra.Command{
		Use:   "emulate",
		Short: "Serve an emulated camera for testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server := emulator.CreateServer(emulateIP, emulatePort, emulateState)
			server.SetLogger(log.Logger)
			return server.ListenAndServe()
		},
	}
	emulate.Flags().StringVar(&emulateIP, "listen-ip", "127.0.0.1", "Address to listen on")
	emulate.Flags().IntVar(&emulatePort, "port", 8080, "Port to listen on")
	emulate.Flags().StringVar(&emulateState.Password, "password", emulateState.Password, "Session token handed out")
	emulate.Flags().StringVar(&emulateState.Name, "name", emulateState.Name, "Camera name")
	emulate.Flags().StringVar(&emulateState.Firmware, "firmware", emulateState.Firmware, "Firmware version")

	var serviceAction string

	var export = &cobra.Command{
		Use:   "exporter",
		Short: "Expose the camera status as Prometheus metrics",
		Long: `Starts a long-running HTTP server exposing the camera status on /metrics.
Can be installed as a system service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcConfig := &service.Config{
				Name:        "herocam-exporter",
				DisplayName: "herocam Prometheus Exporter",
				Description: "Exposes action camera status to Prometheus",
				Arguments:   serviceArguments(settings, cfgFile),
			}

			prg := &program{settings: settings}
			s, err := service.New(prg, svcConfig)
			if err != nil {
				return err
			}

			if serviceAction != "" {
				if err = service.Control(s, serviceAction); err != nil {
					return fmt.Errorf("failed to %s service: %w", serviceAction, err)
				}
				log.Info().Str("action", serviceAction).Msg("Service action completed")
				return nil
			}
			return s.Run()
		},
	}
	export.Flags().String("listen", ":9110", "Address to serve metrics on")
	export.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop")
	_ = viper.BindPFlag(config.KeyExporterListen, export.Flags().Lookup("listen"))

	rootCmd.AddCommand(status)
	rootCmd.AddCommand(info)
	rootCmd.AddCommand(mode)
	rootCmd.AddCommand(shutter)
	rootCmd.AddCommand(stop)
	rootCmd.AddCommand(ls)
	rootCmd.AddCommand(fetch)
	rootCmd.AddCommand(discover)
	rootCmd.AddCommand(emulate)
	rootCmd.AddCommand(export)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Send()
		os.Exit(1)
	}
}

// program runs the exporter under the service manager
type program struct {
	settings config.Settings
	server   *http.Server
}

func (p *program) Start(s service.Service) error {
	camera, err := createCamera(p.settings, log.Logger)
	if err != nil {
		return err
	}

	collector := exporter.NewCollector(&lazyLogin{camera: camera}, log.Logger)
	p.server = &http.Server{
		Addr:    p.settings.ExporterListen,
		Handler: exporter.Handler(collector),
	}

	go func() {
		log.Info().Str("addr", p.settings.ExporterListen).Msg("Exporter listening")
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	log.Info().Msg("Stopping service...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if p.server != nil {
		return p.server.Shutdown(ctx)
	}
	return nil
}

// lazyLogin logs in on the first status scrape, the camera may be
// switched on after the exporter started
type lazyLogin struct {
	camera *libgopro.Camera
}

func (l *lazyLogin) GetStatus() (*libgopro.Status, error) {
	if err := l.camera.Login(); err != nil {
		return nil, err
	}
	return l.camera.GetStatus()
}

func (l *lazyLogin) GetDeviceInfo() (*libgopro.DeviceInfo, error) {
	return l.camera.GetDeviceInfo()
}
