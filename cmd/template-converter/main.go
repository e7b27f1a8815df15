// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the template-converter CLI.
// It converts .docx templates from the merge-field dialect to the brace-tag
// dialect and maintains the store of learned field mappings that drives
// the conversion.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/template-converter/internal/mappingstore"
	"github.com/pdiddy/template-converter/internal/secrets"
	"github.com/pdiddy/template-converter/internal/source"
	"github.com/pdiddy/template-converter/internal/workflow"
	"github.com/pdiddy/template-converter/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the template-converter CLI.
var rootCmd = &cobra.Command{
	Use:   "template-converter",
	Short: "Convert merge-field .docx templates to brace-tag templates",
	Long: `template-converter rewrites .docx templates written with merge fields
(=field, x:each(v), x:if(cond)) into brace tags ({field}, {#x}, {^x}).

Field names are translated through built-in rule tables and a mapping store
learned from pairs of schema instances that hold the same record in each
dialect. Stages are subcommands: schema, learn, match, rank, analyze,
convert and validate. The mappings command manages the store, and mcp
serves every stage as a tool over stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", secrets.Keys(s))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := types.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./template-converter.yaml or ~/.config/template-converter/template-converter.yaml)")
	pf.String("store-dir", defaults.Store.Dir, "directory holding the mapping store")
	pf.Int("accept-score", defaults.Store.AcceptScore, "minimum score for a stored mapping to take part in conversion")
	pf.String("rules", "", "YAML rule tables replacing the built-in ones")
	pf.String("strip-prefix", defaults.Source.StripPrefix, "path prefix removed from schema instance paths")

	bindFlags(pf, map[string]string{
		"store.dir":           "store-dir",
		"store.accept_score":  "accept-score",
		"rewrite.rules_file":  "rules",
		"source.strip_prefix": "strip-prefix",
	})
}

// bindFlags binds each config key to the named flag in fs.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding --%s: %v", name, err))
		}
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("template-converter")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "template-converter"))
		}
	}

	viper.SetEnvPrefix("TEMPLATE_CONVERTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file, environment and flags over the
// defaults. Secrets fill in credentials the config leaves empty.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}

// openWorkflow loads the config and opens the mapping store. The caller
// closes the store.
func openWorkflow() (*workflow.Workflow, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := mappingstore.NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	return workflow.New(cfg, store, source.NewLoader(cfg.Source, os.Stderr)), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
