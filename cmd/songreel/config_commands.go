package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"songreel/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(path)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				target = defaultPath
			}
			if err := config.WriteSample(target, force); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&path, "path", "", "Destination path (defaults to the user config location)")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"config file", ctx.configPath},
				{"data dir", cfg.Paths.DataDir},
				{"clip dir", cfg.Paths.ClipDir},
				{"output dir", cfg.Paths.OutputDir},
				{"log dir", cfg.Paths.LogDir},
				{"poll interval", fmt.Sprintf("%ds", cfg.Workflow.PollInterval)},
				{"batch size", fmt.Sprintf("%d", cfg.Workflow.BatchSize)},
				{"scriptgen model", cfg.ScriptGen.Model},
				{"scriptgen key", redactSecret(cfg.ScriptGen.APIKey)},
				{"videogen model", cfg.VideoGen.Model},
				{"videogen key", redactSecret(cfg.VideoGen.APIKey)},
				{"upload provider", cfg.Upload.Provider},
				{"matching", fmt.Sprintf("%t", cfg.Matching.Enabled)},
				{"character", cfg.Matching.Character},
				{"ntfy topic", cfg.Notifications.NtfyTopic},
				{"log level", cfg.Logging.Level},
			}
			cmd.Println(renderTable([]string{"SETTING", "VALUE"}, rows))
			return nil
		},
	}
}

func redactSecret(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(unset)"
	}
	return "********"
}
