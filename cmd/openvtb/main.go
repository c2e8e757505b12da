// Точка входа Open VTB — REST-сервисы Berichten, Taken и Verzoeken.
// Команды: serve (HTTP-сервер), migrate (миграции БД),
// token (статические ключи доступа), version.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maykinmedia/open-vtb-sub000/internal/config"
)

var (
	// cfg и logger инициализируются в PersistentPreRunE.
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "openvtb",
	Short: "Open VTB: berichten, externe taken en verzoeken",
	Long: `Open VTB — REST API для сообщений (Berichten), внешних задач (Taken)
и запросов (Verzoeken). Конфигурация задаётся переменными окружения OVTB_*
или YAML-файлом по пути OVTB_CONFIG_PATH.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Версия приложения",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "openvtb", config.Version)
	},
}

// loadConfig загружает конфигурацию и настраивает логирование.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	logger = config.SetupLogger(cfg)
	return nil
}
