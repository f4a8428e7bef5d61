package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	DCPCoreVersion = "-"
)

// MetadataDir holds config files and other persistent data for the tool.
var MetadataDir = ".dcpcore"

// init initializes the DCPCoreVersion variable by reading the
// VERSION file from the project root.
func init() {
	// Get the absolute path of the current file (config.go)
	// using runtime reflection
	_, currentFile, _, _ := runtime.Caller(0) //nolint:dogsled

	// config.go lives in config/, so the project root is one level up
	projectRoot := filepath.Dir(filepath.Dir(currentFile))

	version, err := os.ReadFile(filepath.Join(projectRoot, "VERSION"))
	if err == nil {
		DCPCoreVersion = strings.TrimSpace(string(version))
	}

	// Ensure Config is non-nil with default values for tests and simple runs
	if Config == nil {
		Config = initDefaultConfig()
	}
}

var Config *DCPCoreConfig

type DCPCoreConfig struct {
	Host string `mapstructure:"host" default:"127.0.0.1" description:"the host address of the DCP producer node"`
	Port int    `mapstructure:"port" default:"11210" description:"the port of the DCP producer node"`

	Bucket         string `mapstructure:"bucket" default:"default" description:"the bucket to stream from"`
	ConnectionName string `mapstructure:"connection-name" default:"" description:"the DCP connection name; auto-generated when empty"`
	Partitions     string `mapstructure:"partitions" default:"0" description:"comma separated partition (vbucket) ids to stream"`

	LogLevel string `mapstructure:"log-level" default:"info" description:"the log level, values: debug, info, warn, error"`
	LogFile  string `mapstructure:"log-file" default:"" description:"optional log file path; rotated automatically when set"`

	StreamBufferSize      int  `mapstructure:"stream-buffer-size" default:"1024" description:"events buffered per stream before saturation drops kick in"`
	StreamBufferUnbounded bool `mapstructure:"stream-buffer-unbounded" default:"false" description:"buffer stream events without bound instead of dropping on saturation"`

	MetricsHTTPEnabled bool   `mapstructure:"metrics-http-enabled" default:"false" description:"serve a Prometheus-compatible /metrics endpoint"`
	MetricsHTTPAddr    string `mapstructure:"metrics-http-addr" default:":9110" description:"listen address for the metrics endpoint"`
}

func Load(flags *pflag.FlagSet) {
	configureMetadataDir()
	viper.SetConfigType("yaml")
	viper.SetConfigName("dcpcore")
	viper.AddConfigPath(MetadataDir)
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Name == "help" {
			return
		}

		if flag.Changed || !viper.IsSet(flag.Name) {
			viper.Set(flag.Name, flag.Value.String())
		}
	})

	if err := viper.Unmarshal(&Config); err != nil {
		panic(err)
	}
}

// configureMetadataDir anchors MetadataDir to the current working directory
// and creates it if missing.
func configureMetadataDir() {
	if !filepath.IsAbs(MetadataDir) {
		cwd, _ := os.Getwd()
		MetadataDir = filepath.Join(cwd, MetadataDir)
	}
	if err := os.MkdirAll(MetadataDir, 0o700); err != nil {
		fmt.Printf("could not create metadata directory at %s. error: %s\n", MetadataDir, err)
		fmt.Println("using current directory as metadata directory")
		MetadataDir = "."
	}
}

// InitConfig writes the effective configuration to dcpcore.yaml in the
// metadata directory, creating it when missing.
func InitConfig(flags *pflag.FlagSet) {
	Load(flags)
	configPath := filepath.Join(MetadataDir, "dcpcore.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := viper.WriteConfigAs(configPath); err != nil {
			slog.Error("could not write the config file",
				slog.String("path", configPath),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("config created", slog.String("path", configPath))
	} else {
		if overwrite, _ := flags.GetBool("overwrite"); overwrite {
			if err := viper.WriteConfigAs(configPath); err != nil {
				slog.Error("could not write the config file",
					slog.String("path", configPath),
					slog.String("error", err.Error()))
				os.Exit(1)
			}
			slog.Info("config overwritten", slog.String("path", configPath))
		} else {
			slog.Info("config already exists. skipping.", slog.String("path", configPath))
			slog.Info("run with --overwrite to overwrite the existing config")
		}
	}
}

func initDefaultConfig() *DCPCoreConfig {
	defaultConfig := &DCPCoreConfig{}
	configType := reflect.TypeOf(*defaultConfig)
	configValue := reflect.ValueOf(defaultConfig).Elem()

	for i := 0; i < configType.NumField(); i++ {
		field := configType.Field(i)
		value := configValue.Field(i)

		tag := field.Tag.Get("default")
		if tag != "" {
			switch value.Kind() {
			case reflect.String:
				value.SetString(tag)
			case reflect.Int:
				intVal := 0
				if _, err := fmt.Sscanf(tag, "%d", &intVal); err == nil {
					value.SetInt(int64(intVal))
				}
			case reflect.Bool:
				boolVal := false
				if _, err := fmt.Sscanf(tag, "%t", &boolVal); err == nil {
					value.SetBool(boolVal)
				}
			}
		}
	}
	return defaultConfig
}
