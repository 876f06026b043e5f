package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-shpview/internal/dataset"
	"github.com/joeblew999/plat-shpview/internal/logger"
	"github.com/joeblew999/plat-shpview/internal/quality"
	"github.com/joeblew999/plat-shpview/internal/server"
)

// Options defines all CLI flags and env vars for the viewer server.
// Flags: --host, --port, --dataset, --data-dir, --web-dir, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATASET, SERVICE_DATA_DIR, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086"`
	Dataset      string `doc:"Shapefile base path: local path, http(s):// URL or s3://bucket/prefix" default:"data/dataset"`
	DataDir      string `doc:"Directory for the DuckDB mirror" default:".data"`
	WebDir       string `doc:"Path to a web/ directory overriding the embedded assets"`
	LogLevel     string `doc:"Log level (trace, debug, info, warn, error)" default:"info"`
	LogConsole   bool   `doc:"Human-readable console logs"`
	GeocoderURL  string `doc:"Nominatim-compatible place search base URL" default:"https://nominatim.openstreetmap.org"`
	GeocoderRPS  int    `doc:"Place search requests per second (0 disables the limit)" default:"1"`
	UserAgent    string `doc:"User-Agent for dataset fetches and place searches" default:"shpview/0.1"`
	RedisAddr    string `doc:"Redis address for the place search cache (in-memory when empty)"`
	MaxSessions  int    `doc:"Maximum viewer sessions kept in memory" default:"256"`
	StatusField  string `doc:"Attribute holding the status label" default:"Status"`
	StatusGood   string `doc:"Status label of the good category" default:"Baik (Memenuhi)"`
	StatusMedium string `doc:"Status label of the medium category" default:"Cemar Ringan"`
	S3Endpoint   string `doc:"Object storage endpoint for s3:// datasets"`
	S3AccessKey  string `doc:"Object storage access key"`
	S3SecretKey  string `doc:"Object storage secret key"`
	S3Insecure   bool   `doc:"Use plain HTTP for object storage"`
	LoadTimeout  int    `doc:"Dataset load timeout in seconds" default:"60"`
}

func (o *Options) labels() quality.Labels {
	return quality.Labels{Field: o.StatusField, Good: o.StatusGood, Medium: o.StatusMedium}
}

func (o *Options) s3() dataset.S3Config {
	return dataset.S3Config{
		Endpoint:  o.S3Endpoint,
		AccessKey: o.S3AccessKey,
		SecretKey: o.S3SecretKey,
		Insecure:  o.S3Insecure,
	}
}

func (o *Options) logger() zerolog.Logger {
	return logger.Build(logger.Config{Level: o.LogLevel, Console: o.LogConsole}, os.Stderr)
}

func newServer(opts *Options, log zerolog.Logger) (*server.Server, error) {
	return server.New(server.Config{
		Host:        opts.Host,
		Port:        fmt.Sprintf("%d", opts.Port),
		Dataset:     opts.Dataset,
		DataDir:     opts.DataDir,
		WebDir:      opts.WebDir,
		Labels:      opts.labels(),
		S3:          opts.s3(),
		UserAgent:   opts.UserAgent,
		GeocoderURL: opts.GeocoderURL,
		GeocoderRPS: float64(opts.GeocoderRPS),
		RedisAddr:   opts.RedisAddr,
		MaxSessions: opts.MaxSessions,
		LoadTimeout: time.Duration(opts.LoadTimeout) * time.Second,
		Log:         log,
	})
}

// inspection is the summary printed by the inspect command.
type inspection struct {
	Dataset  string         `yaml:"dataset"`
	Features int            `yaml:"features"`
	Fields   []string       `yaml:"fields"`
	Counts   quality.Counts `yaml:"counts"`
	Took     string         `yaml:"took"`
}

func inspect(ctx context.Context, opts *Options) (*inspection, error) {
	loc, err := dataset.ParseLocation(opts.Dataset, opts.s3(), opts.UserAgent)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(opts.LoadTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	coll, err := dataset.NewLoader(loc).Load(ctx)
	if err != nil {
		return nil, err
	}
	return &inspection{
		Dataset:  opts.Dataset,
		Features: coll.Len(),
		Fields:   coll.Fields,
		Counts:   opts.labels().Tally(coll.Features.Features),
		Took:     time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := opts.logger()
		srv, err := newServer(opts, log)
		if err != nil {
			log.Fatal().Err(err).Msg("server setup failed")
		}
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			log.Info().
				Str("url", baseURL).
				Str("dataset", opts.Dataset).
				Str("docs", baseURL+"/docs").
				Msg("shpview server starting")

			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("server error")
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(ctx)
			srv.Close()
		})
	})

	cli.Root().Use = "shpview"
	cli.Root().Short = "Web map viewer for a shapefile dataset"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts, zerolog.Nop())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// inspect subcommand: load the dataset once and summarise it
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load the dataset once and print its feature count, fields and status counts",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			res, err := inspect(context.Background(), opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load shapefile: %v\n", err)
				os.Exit(1)
			}
			out, err := yaml.Marshal(res)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(out))
		}),
	}
	cli.Root().AddCommand(inspectCmd)

	cli.Run()
}
