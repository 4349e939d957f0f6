package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cv-tailor/internal/shared/config"
)

const app = "cvtailor"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cvtailor tailors a CV and cover letter to a job description",
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is cvtailor.yaml in current directory)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider (openai, gemini, anthropic)")
	rootCmd.PersistentFlags().String("model", "", "LLM model")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection string")
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "do not ask for confirmation")

	for _, name := range []string{"provider", "model", "database-url", "yes"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	viper.SetEnvPrefix("CVTAILOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadConfig applies CLI overrides on top of the service environment.
func loadConfig() config.Config {
	cfg := config.Load()
	if v := strings.TrimSpace(viper.GetString("provider")); v != "" {
		cfg.LLMProvider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(viper.GetString("model")); v != "" {
		cfg.LLMModel = v
	}
	if v := strings.TrimSpace(viper.GetString("database-url")); v != "" {
		cfg.DatabaseURL = v
	}
	return cfg
}
