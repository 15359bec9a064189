package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"noterang/internal/auth"
	"noterang/internal/logging"
	"noterang/internal/nlm"
)

func newLoginCommand() *cobra.Command {
	var (
		show  bool
		check bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the notebook product and store the credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.NewComponentLogger("Login")
			session := auth.NewSession(cfg, log)
			defer session.Close()

			store := session.Store()

			if show {
				artifact, err := store.Load()
				if err != nil {
					return fmt.Errorf("no stored credentials: %w", err)
				}
				fmt.Printf("cookies:   %d\n", len(artifact.Cookies))
				fmt.Printf("session:   %s\n", artifact.SessionID)
				fmt.Printf("extracted: %s (%s ago)\n",
					time.Unix(artifact.ExtractedAt, 0).Format(time.RFC3339),
					artifact.Age(time.Now()).Round(time.Second))
				return nil
			}

			if check {
				pool := nlm.NewPool(store, log)
				defer pool.Close()
				if err := pool.Probe(cmd.Context()); err != nil {
					fmt.Println(red("✗ 인증 무효:"), err)
					return err
				}
				fmt.Println(green("✓ 인증 유효"))
				return nil
			}

			timeout := time.Duration(cfg.TimeoutLogin) * time.Second
			if _, err := session.Login(cmd.Context(), false, timeout); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Println(green("✓ 로그인 성공"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the stored credential summary")
	cmd.Flags().BoolVar(&check, "check", false, "probe the product with the stored credentials")
	return cmd
}

func newConfigCommand() *cobra.Command {
	var (
		show        bool
		downloadDir string
		headless    bool
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			changed := cmd.Flags().Changed("download-dir") || cmd.Flags().Changed("headless")
			if show || !changed {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			if cmd.Flags().Changed("download-dir") {
				cfg.DownloadDir = downloadDir
			}
			if cmd.Flags().Changed("headless") {
				cfg.BrowserHeadless = headless
			}
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Println(green("✓ 설정 저장됨"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the effective configuration")
	cmd.Flags().StringVar(&downloadDir, "download-dir", "", "set the download directory")
	cmd.Flags().BoolVar(&headless, "headless", false, "set headless browser mode")
	return cmd
}
