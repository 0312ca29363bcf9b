package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:               "aud",
	Short:             "Terminal audio and MIDI tools",
	Long:              "aud bundles a MIDI monitor, an oscilloscope data dump, and a tempo-sync client around one scriptable engine.",
	SilenceUsage:      true,
	PersistentPreRunE: setupRuntime,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "logrus level: trace, debug, info, warn, error")
	flags.String("log-file", "", "append logs to this file instead of stderr")
	flags.String("script", "", "Lua script path or bare name resolved under the config directory")
	flags.Uint32("timeout-ms", 0, "auto-stop after this many milliseconds, 0 runs forever")

	for _, name := range []string{"log-level", "log-file", "script", "timeout-ms"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("AUD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(midimonCmd, auscopeCmd, derlinkCmd)
}

// setupRuntime loads the optional config file and configures logrus
// before any subcommand runs.
func setupRuntime(cmd *cobra.Command, args []string) error {
	if dir, err := configDir(); err == nil {
		viper.SetConfigName("aud")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(dir)
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !os.IsNotExist(err) && !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", viper.GetString("log-level"), err)
	}
	logrus.SetLevel(level)

	if path := viper.GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logrus.SetOutput(f)
	}

	return nil
}

// configDir returns the per-user configuration directory for aud.
func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "aud"), nil
}

// resolveScript turns the --script value into a usable path. A value that
// names an existing file wins; otherwise bare names are looked up under
// <config>/scripts, with and without the .lua extension.
func resolveScript(name string) string {
	if name == "" {
		return ""
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}

	dir, err := configDir()
	if err != nil {
		return name
	}

	for _, candidate := range []string{
		filepath.Join(dir, "scripts", name),
		filepath.Join(dir, "scripts", name+".lua"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}
