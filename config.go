/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	bucket        string
	clues         string
	db            string
	instance      string
	maxUpload     int64
	photos        string
	port          int
	prefix        string
	profile       bool
	redisAddr     string
	redisDB       int
	redisPassword string
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxUpload < 1 {
		return fmt.Errorf("invalid upload limit (must be positive): %d", c.maxUpload)
	}
	if c.bucket == "" || strings.ContainsAny(c.bucket, `/\`) {
		return fmt.Errorf("invalid bucket name: %q", c.bucket)
	}
	if c.db == "" {
		return errors.New("--db must not be empty")
	}
	if c.redisAddr != "" && c.instance == "" {
		return errors.New("--instance must be set when using --redis-addr")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BINGO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "photobingo",
		Short:         "Photo challenge bingo for parties, with a live admin console.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BINGO_BIND)")
	fs.StringVar(&cfg.bucket, "bucket", "party-bingo", "name of the photo bucket directory (env: BINGO_BUCKET)")
	fs.StringVar(&cfg.clues, "clues", "", "path to a JSON clue pool, instead of the built-in one (env: BINGO_CLUES)")
	fs.StringVar(&cfg.db, "db", "data/bingo.db", "path to the SQLite database (env: BINGO_DB)")
	fs.StringVar(&cfg.instance, "instance", "default", "namespace for the shared change feed (env: BINGO_INSTANCE)")
	fs.Int64Var(&cfg.maxUpload, "max-upload", 10<<20, "maximum photo size in bytes (env: BINGO_MAX_UPLOAD)")
	fs.StringVar(&cfg.photos, "photos", "data/photos", "directory to store uploaded photos in (env: BINGO_PHOTOS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BINGO_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BINGO_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BINGO_PROFILE)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "", "redis address for sharing changes between instances (env: BINGO_REDIS_ADDR)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: BINGO_REDIS_DB)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "redis password (env: BINGO_REDIS_PASSWORD)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: BINGO_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: BINGO_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BINGO_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BINGO_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("photobingo v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
