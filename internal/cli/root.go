package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/util"
)

// Version is set at build time with -ldflags "-X ..."
var Version = "v0.1.0"

var (
	cfgFile string
	envFile string
	verbose bool
)

// legacyEnv maps config keys to the plain environment names used by
// existing deployments. FACTBOT_* names always work as well.
var legacyEnv = map[string]string{
	"discord.token":      "DISCORD_TOKEN",
	"perplexity.api_key": "PERPLEXITY_API_KEY",
	"payment.shop_id":    "YOOKASSA_SHOP_ID",
	"payment.secret_key": "YOOKASSA_SECRET_KEY",
	"log.level":          "LOG_LEVEL",
	"log.file":           "LOG_FILE",
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "factbot",
	Short: "Factbot - fact-checking chat bot with source reliability ranking",
	Long: `Factbot is a chat bot that fact-checks statements and analyzes articles
with an online search model, then ranks every cited source by the
reliability of its domain.

It does not decide what is true. It reports what the sources say
and how much weight those sources usually deserve.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Factbot.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "factbot %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.factbot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// Values already present in the environment win over the dotenv file
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
		}
	}

	if err := setupViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}
	if verbose && viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setupViper registers defaults, environment bindings and the config file
func setupViper(v *viper.Viper, file string) error {
	if err := registerDefaults(v, model.DefaultConfig()); err != nil {
		return err
	}

	// Read in environment variables that match FACTBOT_*
	v.SetEnvPrefix("FACTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := "FACTBOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".factbot"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadConfig decodes the viper state into a config. Validation is left to
// the commands that need a complete config.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Secrets are often pasted into .env files with quotes or comments
	cfg.Discord.Token = util.CleanEnvValue(cfg.Discord.Token)
	cfg.Perplexity.APIKey = util.CleanEnvValue(cfg.Perplexity.APIKey)
	cfg.Payment.ShopID = util.CleanEnvValue(cfg.Payment.ShopID)
	cfg.Payment.SecretKey = util.CleanEnvValue(cfg.Payment.SecretKey)

	if len(cfg.Payment.Packages) == 0 {
		cfg.Payment.Packages = model.DefaultPackages()
	}
	return cfg, nil
}

// registerDefaults makes every config key known to viper so that
// AutomaticEnv can override it
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}

	// Promo codes are a default as a whole: a config file replaces the
	// map instead of merging into it. A typed map is a leaf for viper.
	if usage, ok := tree["usage"].(map[string]interface{}); ok {
		delete(usage, "promo_codes")
	}
	promos := make(map[string]int, len(cfg.Usage.PromoCodes))
	for code, n := range cfg.Usage.PromoCodes {
		promos[code] = n
	}
	v.SetDefault("usage.promo_codes", promos)

	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		if sub, ok := val.(map[string]interface{}); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}
