package cmd

import (
	"revsync/internal/config"
	"revsync/internal/util"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize config file",
	Long:  `Generate a default revsync.yaml config file in the current directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		if config.ConfigExists() {
			util.Default.Println("Config file already exists.")
			return
		}
		cfg := config.Default()
		if err := cfg.Save(config.ConfigFileName); err != nil {
			util.Default.Printf("❌ Failed to write %s: %v\n", config.ConfigFileName, err)
			return
		}
		util.Default.Printf("✅ Created %s — edit it with your server details\n", config.ConfigFileName)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
