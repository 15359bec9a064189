package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"noterang/internal/auth"
	"noterang/internal/gallery"
	"noterang/internal/history"
	"noterang/internal/logging"
	"noterang/internal/nlm"
	"noterang/internal/pdfanalyze"
	"noterang/internal/pptx"
	"noterang/internal/workflow"
)

func newListCommand() *cobra.Command {
	var runs int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notebooks, or past runs with --runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("runs") {
				return listRuns(cmd, runs)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.NewComponentLogger("List")
			session := auth.NewSession(cfg, log)
			defer session.Close()
			pool := nlm.NewPool(session.Store(), log)
			defer pool.Close()

			if err := session.EnsureAuth(cmd.Context(), pool); err != nil {
				return fmt.Errorf("authentication: %w", err)
			}
			client, err := pool.Get(false)
			if err != nil {
				return err
			}
			notebooks, err := client.ListNotebooks(cmd.Context())
			if err != nil {
				return err
			}
			if len(notebooks) == 0 {
				fmt.Println(gray("노트북 없음"))
				return nil
			}
			for _, nb := range notebooks {
				fmt.Printf("%s  %s\n", cyan(nb.ID), nb.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 20, "show this many recent runs instead of notebooks")
	return cmd
}

func listRuns(cmd *cobra.Command, limit int) error {
	store, err := history.Open(historyPath())
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println(gray("기록 없음"))
		return nil
	}
	for _, r := range rows {
		mark := green("✓")
		detail := fmt.Sprintf("슬라이드 %d장, %ds", r.SlideCount, r.DurationSeconds)
		if !r.Success {
			mark = red("✗")
			detail = r.Error
		}
		fmt.Printf("%s %s  %s  %s\n", mark, r.CreatedAt.Local().Format("01-02 15:04"), r.Title, gray(detail))
	}
	return nil
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <notebook_id>",
		Short: "Delete a notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.NewComponentLogger("Delete")
			session := auth.NewSession(cfg, log)
			defer session.Close()
			pool := nlm.NewPool(session.Store(), log)
			defer pool.Close()

			if err := session.EnsureAuth(cmd.Context(), pool); err != nil {
				return fmt.Errorf("authentication: %w", err)
			}
			client, err := pool.Get(false)
			if err != nil {
				return err
			}
			if err := client.DeleteNotebook(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println(green("✓ 삭제됨"), args[0])
			return nil
		},
	}
}

func newConvertCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "convert <pdf_path>",
		Short: "Convert a slide PDF into a full-bleed image PPTX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := pptx.ConvertPDF(args[0], out)
			if err != nil {
				return err
			}
			fmt.Printf("%s 슬라이드 %d장\n", green("✓ 변환 완료"), count)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output .pptx path")
	return cmd
}

func newStylesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the slide design presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range workflow.StyleNames() {
				prompt, _ := workflow.StylePrompt(name)
				fmt.Printf("%s\n  %s\n", bold(name), gray(firstSentence(prompt)))
			}
			return nil
		},
	}
}

func firstSentence(s string) string {
	for i, r := range s {
		if r == '.' {
			return s[:i+1]
		}
	}
	return s
}

func newGalleryCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Render published runs into a static HTML gallery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(historyPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Published(cmd.Context())
			if err != nil {
				return err
			}

			analyzer := pdfanalyze.New(
				pdfanalyze.WithVisionOCR(cfg.VisionAPIKey, cfg.OCRConfidenceThreshold))
			articles := make([]gallery.Article, 0, len(runs))
			for _, run := range runs {
				article := gallery.Article{Run: run}
				if run.PDFPath != "" {
					if _, statErr := os.Stat(run.PDFPath); statErr == nil {
						if analysis, aErr := analyzer.Analyze(cmd.Context(), run.PDFPath); aErr == nil {
							article.Markdown = analysis.Content
						}
					}
				}
				articles = append(articles, article)
			}

			n, err := gallery.Render(articles, out)
			if err != nil {
				return err
			}
			fmt.Printf("%s %d개 문서 → %s\n", green("✓ 갤러리 생성"), n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "gallery", "output directory")
	return cmd
}
