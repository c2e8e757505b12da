// token.go — управление статическими ключами доступа
// (заголовок Authorization: Token <key>).
package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maykinmedia/open-vtb-sub000/internal/database"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/service"
)

var (
	tokens     *service.TokenService
	closeStore func()
	onlyActive bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Статические ключи доступа",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd, args); err != nil {
			return err
		}
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		pool, err := database.Connect(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		closeStore = pool.Close
		tokens = service.NewTokenService(repository.NewStore(pool), logger)
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if closeStore != nil {
			closeStore()
		}
	},
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create <naam>",
	Short: "Создать ключ; ключ выводится один раз",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := tokens.Create(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Key)
		return nil
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список ключей",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var active *bool
		if onlyActive {
			active = &onlyActive
		}
		items, err := tokens.List(cmd.Context(), active)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAAM\tPREFIX\tACTIEF\tAANGEMAAKT\tLAATST GEBRUIKT")
		for _, t := range items {
			used := "-"
			if t.LaatstGebruiktOp != nil {
				used = t.LaatstGebruiktOp.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", t.Naam, t.Prefix, t.Actief, t.AangemaaktOp.Format(time.RFC3339), used)
		}
		return w.Flush()
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <naam|prefix>",
	Short: "Деактивировать ключ",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tokens.Revoke(cmd.Context(), args[0])
	},
}

func init() {
	tokenListCmd.Flags().BoolVar(&onlyActive, "active", false, "только активные ключи")
	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
}
