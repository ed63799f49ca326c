// Package main provides the command-line entry point for the compute-
// cache-cron engine. It loads a configuration document, builds the
// data-node tree, starts the periodic and cron runners in the background,
// resolves one path against the tree, and prints the invocation's result
// as JSON — the "core" half of spec.md §6's CLI surface, with flags
// stripped by cobra/pflag before the core ever sees an argument.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/x2ee/c3/common"
	"github.com/x2ee/c3/config"
	"github.com/x2ee/c3/ctx"
	"github.com/x2ee/c3/dnode"
	"github.com/x2ee/c3/dpath"
	"github.com/x2ee/c3/logic"
	"github.com/x2ee/c3/types"
)

// cfgFile holds the path to the CLI's own configuration file (CLI
// defaults: snapshot location, sqlite directory, pool size) as opposed to
// the engine's <config-module> positional argument, which names the
// node-tree configuration document.
//
// Search order when --config is empty:
//  1. $HOME/.c3.yaml
//  2. ./.c3.yaml
var cfgFile string

var (
	forceFlag    bool
	asOfFlag     string
	snapshotFlag string
	sqliteDir    string
	poolSize     int
)

// RootCmd is the c3 CLI: <prog> <config-module> [-force] [<interval>]
// <path> [<key-value>…].
var RootCmd = &cobra.Command{
	Use:   "c3 <config-module> [<interval>] <path> [<key-value>…]",
	Short: "invoke one data-node path against a compute-cache-cron engine",
	Long: `c3 loads a node-tree configuration document, resolves a single
data-node path, and runs one invocation — calling compute, reading or
writing the as-of cache as configured, and printing the decoded result as
JSON. Its background runners drive the tree's declared cron tasks and the
built-in clean_cache maintenance task for the life of the process.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runInvoke,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "CLI config file (default is $HOME/.c3.yaml)")
	RootCmd.Flags().BoolVar(&forceFlag, "force", false, "bypass a fresh cache read and recompute")
	RootCmd.Flags().StringVar(&asOfFlag, "as-of", "", "as-of date (YYYY-MM-DD), default: today under the simulated clock")
	RootCmd.Flags().StringVar(&snapshotFlag, "snapshot", "c3-snapshot.db", "durable bookkeeping file (cron last-run, config snapshot)")
	RootCmd.Flags().StringVar(&sqliteDir, "sqlite-dir", ".", "directory holding one sqlite file per backend-default state table")
	RootCmd.Flags().IntVar(&poolSize, "pool-size", 4, "bounded worker-pool size for synchronous compute offload")

	viper.BindPFlag("snapshot", RootCmd.Flags().Lookup("snapshot"))
	viper.BindPFlag("sqlite_dir", RootCmd.Flags().Lookup("sqlite-dir"))
	viper.BindPFlag("pool_size", RootCmd.Flags().Lookup("pool-size"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".c3")
	}

	viper.SetEnvPrefix("c3")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		common.Logger.WithField("file", viper.ConfigFileUsed()).Info("using config file")
	}

	applyServiceLogConfig()
}

// applyServiceLogConfig reads C3_LOG_LEVEL/C3_LOG_FORMAT/C3_ENVIRONMENT
// (config.ServiceConfig) and applies them to common.Logger. Falls back to
// the logger's existing defaults on a validation error rather than
// failing startup over a logging preference.
func applyServiceLogConfig() {
	service, err := config.NewConfigLoader("C3").LoadService()
	if err != nil {
		common.Logger.WithError(err).Warning("invalid service log configuration, using defaults")
		return
	}

	if level, err := logrus.ParseLevel(service.LogLevel); err == nil {
		common.Logger.SetLevel(level)
	}
	if service.LogFormat == "json" {
		common.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// runInvoke builds the engine handle, starts its background runners, runs
// exactly one invocation against the resolved path, and tears the handle
// down before returning.
func runInvoke(cmd *cobra.Command, args []string) error {
	configModule := args[0]
	iv, path, keyValues, err := parseInvocationArgs(args[1:])
	if err != nil {
		return err
	}

	snapshotPath := viper.GetString("snapshot")
	sqliteDirPath := viper.GetString("sqlite_dir")
	size := viper.GetInt("pool_size")
	if size < 1 {
		size = poolSize
	}

	// The CLI ships no built-in compute/cron logic of its own, and it
	// resolves refs against this fresh registry, into which nothing is
	// registered: a configuration whose services name a ref$ fails to
	// build the tree.
	registry := logic.NewRegistry()

	h, err := ctx.NewHandle(ctx.Options{
		ConfigPath:   configModule,
		SnapshotPath: snapshotPath,
		SQLiteDir:    sqliteDirPath,
		Logic:        registry,
		Matrix:       types.DefaultMatrix(),
		PoolSize:     size,
	})
	if err != nil {
		return fmt.Errorf("c3: initializing engine: %w", err)
	}
	defer func() {
		if closeErr := h.Close(); closeErr != nil {
			common.Logger.WithError(closeErr).Warning("error closing engine handle")
		}
	}()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Periodic.Run(runCtx)
	go h.Cron.Run(runCtx)

	parsedPath, err := dpath.Parse(path)
	if err != nil {
		return fmt.Errorf("c3: invalid path %q: %w", path, err)
	}
	node, ok := h.Tree.Get(parsedPath)
	if !ok {
		return fmt.Errorf("c3: no data node at path %q", path)
	}
	dn, ok := node.(*dnode.DataNode)
	if !ok {
		return fmt.Errorf("c3: %q is a directory node, not a data node", path)
	}

	var asOf *time.Time
	if asOfFlag != "" {
		t, parseErr := time.Parse("2006-01-02", asOfFlag)
		if parseErr != nil {
			return fmt.Errorf("c3: invalid --as-of date %q: %w", asOfFlag, parseErr)
		}
		asOf = &t
	}

	result, err := dn.Get(runCtx, h.Clock, keyValues, asOf, iv, forceFlag, types.DefaultMatrix(), h.Tracker)
	if err != nil {
		return fmt.Errorf("c3: invocation failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
