package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".equityscope"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for equityscope settings.
const envPrefix = "EQUITYSCOPE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Load reads configuration from .env, a YAML file, environment variables,
// and defaults, in increasing precedence of env over file over defaults.
// If configPath is non-empty it is used as the explicit config file path;
// otherwise the file is searched in CWD and $HOME. A missing config file
// is not an error.
func Load(configPath string) (*Config, error) {
	// A .env next to the process provides per-upstream credentials in
	// development; absence is fine.
	_ = godotenv.Load()

	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	bindLegacyEnv(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("port", DefaultPort)
	viperCfg.SetDefault("use_http_financials", false)
	viperCfg.SetDefault("financials_http_url", "")
	viperCfg.SetDefault("http_timeout", DefaultHTTPTimeoutS)
	viperCfg.SetDefault("metric_delay_ms", DefaultMetricDelayMS)
	viperCfg.SetDefault("tool_timeout", DefaultToolTimeoutS)
	viperCfg.SetDefault("worker_binary", DefaultWorkerBinary)

	viperCfg.SetDefault("keys.fred", "")
	viperCfg.SetDefault("keys.alpha_vantage", "")
	viperCfg.SetDefault("keys.finnhub", "")
	viperCfg.SetDefault("keys.tavily", "")
	viperCfg.SetDefault("keys.nyt", "")
	viperCfg.SetDefault("keys.sec_user_agent", "equityscope research client")

	viperCfg.SetDefault("log.level", "info")
	viperCfg.SetDefault("log.json", false)
}

// bindLegacyEnv maps the unprefixed environment names the deployment
// already uses onto viper keys.
func bindLegacyEnv(viperCfg *viper.Viper) {
	_ = viperCfg.BindEnv("use_http_financials", "USE_HTTP_FINANCIALS")
	_ = viperCfg.BindEnv("financials_http_url", "FINANCIALS_HTTP_URL")
	_ = viperCfg.BindEnv("http_timeout", "HTTP_TIMEOUT")
	_ = viperCfg.BindEnv("metric_delay_ms", "METRIC_DELAY_MS")
	_ = viperCfg.BindEnv("port", "PORT")

	_ = viperCfg.BindEnv("keys.fred", "FRED_API_KEY")
	_ = viperCfg.BindEnv("keys.alpha_vantage", "ALPHA_VANTAGE_API_KEY")
	_ = viperCfg.BindEnv("keys.finnhub", "FINNHUB_API_KEY")
	_ = viperCfg.BindEnv("keys.tavily", "TAVILY_API_KEY")
	_ = viperCfg.BindEnv("keys.nyt", "NYT_API_KEY")
	_ = viperCfg.BindEnv("keys.sec_user_agent", "SEC_USER_AGENT")
}
