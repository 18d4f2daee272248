package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/backkem/hap/pkg/airplay"
	"github.com/backkem/hap/pkg/discovery"
	"github.com/backkem/hap/pkg/exchange"
)

// Configuration keys.
const (
	keyLogLevel      = "log-level"
	keyStore         = "store"
	keyStorePath     = "store-path"
	keyName          = "name"
	keyMAC           = "mac"
	keyTimeout       = "timeout"
	keyBrowseTimeout = "browse-timeout"
)

// configDir is the directory below $HOME holding config and credentials.
const configDir = ".hap"

// options is the resolved configuration.
type options struct {
	LogLevel      string
	Store         string
	StorePath     string
	Name          string
	MAC           string
	Timeout       time.Duration
	BrowseTimeout time.Duration
}

// app carries state shared by the commands.
type app struct {
	v       *viper.Viper
	cfgFile string
	opts    options

	loggerFactory *logging.DefaultLoggerFactory
	log           logging.LeveledLogger
}

func newRootCommand() *cobra.Command {
	return newApp().command()
}

func newApp() *app {
	return &app{v: viper.New()}
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "hap",
		Short:         "Pair with and verify AirPlay and Companion-Link devices",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ~/.hap/config.yaml)")
	flags.String(keyLogLevel, "info", "log level: disabled, error, warn, info, debug, trace")
	flags.String(keyStore, "file", "credential store: file or bolt")
	flags.String(keyStorePath, "", "credential store path")
	flags.String(keyName, airplay.DefaultName, "controller name sent during pairing")
	flags.String(keyMAC, "", "Companion-Link pairing id (default: random)")
	flags.Duration(keyTimeout, exchange.DefaultTimeout, "request timeout")
	flags.Duration(keyBrowseTimeout, discovery.DefaultBrowseTimeout, "mDNS browse timeout")
	for _, key := range []string{keyLogLevel, keyStore, keyStorePath, keyName, keyMAC, keyTimeout, keyBrowseTimeout} {
		_ = a.v.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(
		newDiscoverCommand(a),
		newPairCommand(a),
		newVerifyCommand(a),
	)
	return root
}

// init reads configuration and sets up logging.
func (a *app) init(cmd *cobra.Command) error {
	if err := a.readConfig(); err != nil {
		return err
	}
	opts, err := a.options()
	if err != nil {
		return err
	}
	a.opts = opts

	level, err := parseLogLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	a.loggerFactory = logging.NewDefaultLoggerFactory()
	a.loggerFactory.Writer = cmd.ErrOrStderr()
	a.loggerFactory.DefaultLogLevel = level
	a.log = a.loggerFactory.NewLogger("hap")
	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.Debugf("using config file %s", used)
	}
	return nil
}

func (a *app) readConfig() error {
	a.v.SetEnvPrefix("HAP")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		dir, err := baseDir()
		if err != nil {
			return err
		}
		a.v.AddConfigPath(dir)
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && a.cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func (a *app) options() (options, error) {
	o := options{
		LogLevel:      a.v.GetString(keyLogLevel),
		Store:         a.v.GetString(keyStore),
		StorePath:     a.v.GetString(keyStorePath),
		Name:          a.v.GetString(keyName),
		MAC:           a.v.GetString(keyMAC),
		Timeout:       a.v.GetDuration(keyTimeout),
		BrowseTimeout: a.v.GetDuration(keyBrowseTimeout),
	}
	if o.StorePath == "" {
		dir, err := baseDir()
		if err != nil {
			return o, err
		}
		switch o.Store {
		case storeBolt:
			o.StorePath = filepath.Join(dir, "credentials.db")
		default:
			o.StorePath = filepath.Join(dir, "credentials.yaml")
		}
	}
	return o, nil
}

func baseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	}
	return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", s)
}
