package cmd

import (
	"fmt"
	"os"
	"reflect"
	"strconv"

	"github.com/nikkitan/dcpcore/config"
	"github.com/spf13/cobra"
)

func init() {
	flags := rootCmd.PersistentFlags()

	c := config.DCPCoreConfig{}
	_type := reflect.TypeOf(c)
	for i := 0; i < _type.NumField(); i++ {
		field := _type.Field(i)
		yamlTag := field.Tag.Get("mapstructure")
		descriptionTag := field.Tag.Get("description")
		defaultTag := field.Tag.Get("default")

		switch field.Type.Kind() {
		case reflect.String:
			flags.String(yamlTag, defaultTag, descriptionTag)
		case reflect.Int:
			val, _ := strconv.Atoi(defaultTag)
			flags.Int(yamlTag, val, descriptionTag)
		case reflect.Bool:
			val, _ := strconv.ParseBool(defaultTag)
			flags.Bool(yamlTag, val, descriptionTag)
		}
	}

	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "dcpcore",
	Short: "dcpcore - a DCP change-data-capture stream client",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the dcpcore version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.DCPCoreVersion)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
