package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Lapis256/bedrockdb"
	"github.com/Lapis256/bedrockdb/compression"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.1.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "bedrockdb",
		Short: "inspect Minecraft Bedrock worlds",
		Long: fmt.Sprintf(`bedrockdb (v%s)

Reads and verifies the records of a Minecraft Bedrock world: level.dat,
dynamic properties, players, actors and maps.`, Version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of bedrockdb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bedrockdb v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(levelCmd, propsCmd, playerCmd, entitiesCmd, mapsCmd, exportMapCmd, verifyCmd)

	key := "world"
	RootCmd.PersistentFlags().String(key, ".", "path to the world directory")
	key = "compression-level"
	RootCmd.PersistentFlags().Int(key, compression.MaxLevel, "deflate level (0-10); 0 stores new table blocks uncompressed")
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", "log level (debug, info, warn, error)")
	key = "read-only"
	RootCmd.PersistentFlags().Bool(key, true, "open the database without write access")
	key = "strict-flush"
	RootCmd.PersistentFlags().Bool(key, false, "report failed flushes as errors")
}

// initConfig loads .env files and binds environment variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("bedrockdb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger returns a text logger writing to stderr at the configured level.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// openWorld opens the world configured through flags and environment.
func openWorld() (*bedrockdb.DB, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	o := bedrockdb.DefaultOptions()
	o.CompressionLevel = viper.GetInt("compression-level")
	o.ReadOnly = viper.GetBool("read-only")
	if viper.GetBool("strict-flush") {
		o.Flush = bedrockdb.FlushStrict
	}
	o.Log = log
	return bedrockdb.Config{Options: o}.Open(viper.GetString("world"))
}

// withWorld opens the world, runs f and closes the world again.
func withWorld(f func(db *bedrockdb.DB) error) error {
	db, err := openWorld()
	if err != nil {
		return err
	}
	defer db.Close()
	return f(db)
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
