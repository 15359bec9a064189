package main

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"noterang/internal/auth"
	"noterang/internal/browser"
	"noterang/internal/config"
	"noterang/internal/logging"
	"noterang/internal/nlm"
	"noterang/internal/publish"
	"noterang/internal/workflow"
)

type runFlags struct {
	sources      []string
	queries      []string
	focus        string
	language     string
	style        string
	category     string
	skipResearch bool
	skipDownload bool
	skipConvert  bool

	publishIt bool
	slug      string
	tags      []string
	author    string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.sources, "sources", nil, "source URLs to attach")
	cmd.Flags().StringSliceVar(&f.queries, "queries", nil, "research queries")
	cmd.Flags().StringVar(&f.focus, "focus", "", "focus areas for the deck")
	cmd.Flags().StringVar(&f.language, "language", "", "slide language (ko|en)")
	cmd.Flags().StringVar(&f.style, "style", "", "design preset name (see 'noterang styles')")
	cmd.Flags().StringVar(&f.category, "category", "", "topic category for default style and publish")
	cmd.Flags().BoolVar(&f.skipResearch, "skip-research", false, "do not run research queries")
	cmd.Flags().BoolVar(&f.skipDownload, "skip-download", false, "stop after generation")
	cmd.Flags().BoolVar(&f.skipConvert, "skip-convert", false, "do not build the PPTX")

	cmd.Flags().BoolVar(&f.publishIt, "publish", false, "publish the article after download")
	cmd.Flags().StringVar(&f.slug, "slug", "", "publish slug (default derived from the title)")
	cmd.Flags().StringSliceVar(&f.tags, "tags", nil, "publish tags")
	cmd.Flags().StringVar(&f.author, "author", "noterang", "publish author name")
}

func newRunCommand() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <title>",
		Short: "Generate a slide deck for one topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			title := args[0]
			log := logging.NewComponentLogger("Run")

			session := auth.NewSession(cfg, log)
			defer session.Close()
			pool := nlm.NewPool(session.Store(), log)
			defer pool.Close()

			fmt.Println(bold("▶ " + title))
			wf := workflow.New(cfg, session, pool, log)
			res := wf.Run(cmd.Context(), workflow.Options{
				Title:        title,
				URLs:         flags.sources,
				Queries:      flags.queries,
				Focus:        flags.focus,
				Language:     language(flags.language, cfg),
				Style:        flags.style,
				Category:     flags.category,
				SkipResearch: flags.skipResearch,
				SkipDownload: flags.skipDownload,
				SkipConvert:  flags.skipConvert,
			})

			method := ""
			if res.OK && flags.publishIt {
				method = publishRun(cmd, cfg, session, title, flags, &res)
			}

			recordRun(cmd, title, method, res)
			printResult(res)
			emitResult(res)
			if !res.OK {
				return fmt.Errorf("%s", res.Error)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newRegenerateCommand() *cobra.Command {
	flags := &runFlags{}
	var title string
	cmd := &cobra.Command{
		Use:   "regenerate <notebook_id>",
		Short: "Re-run generation, download, and conversion for an existing notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.NewComponentLogger("Regenerate")

			session := auth.NewSession(cfg, log)
			defer session.Close()
			pool := nlm.NewPool(session.Store(), log)
			defer pool.Close()

			wf := workflow.New(cfg, session, pool, log)
			res := wf.Regenerate(cmd.Context(), args[0], workflow.Options{
				Title:        title,
				Focus:        flags.focus,
				Language:     language(flags.language, cfg),
				Style:        flags.style,
				Category:     flags.category,
				SkipDownload: flags.skipDownload,
				SkipConvert:  flags.skipConvert,
			})

			recordRun(cmd, title, "", res)
			printResult(res)
			emitResult(res)
			if !res.OK {
				return fmt.Errorf("%s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title used for the download filename")
	flags.register(cmd)
	return cmd
}

// publishRun pushes the analyzed article to the backend and returns the
// delivery method for the ledger.
func publishRun(cmd *cobra.Command, cfg *config.Config, session *auth.Session, title string, flags *runFlags, res *workflow.Result) string {
	log := logging.NewComponentLogger("Publish")

	drv := browser.NewDriver(session.Browser(), cfg.ScreenshotDir(), cfg.SaveScreenshots, log)
	fallback := publish.NewUIFallback(drv, "", log)
	pub := publish.New(cfg, session, fallback, log)

	req := publish.Request{
		Title:      title,
		Slug:       orSlug(flags.slug, title),
		Category:   flags.category,
		Tags:       flags.tags,
		Visible:    true,
		AuthorName: flags.author,
	}
	if res.Analysis != nil {
		req.ContentMarkdown = res.Analysis.Content
		req.Excerpt = excerptOf(res.Analysis.Content)
		if len(req.Tags) == 0 {
			req.Tags = res.Analysis.Keywords
		}
	}
	if res.PDFPath != "" {
		req.AttachmentPath = res.PDFPath
		req.AttachmentName = filepath.Base(res.PDFPath)
	}

	out, err := pub.Post(cmd.Context(), req)
	if err != nil {
		fmt.Println(yellow("발행 실패:"), err)
		return ""
	}
	fmt.Println(green("발행 완료"), gray("("+out.Method+")"))
	return out.Method
}

func language(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.DefaultLanguage
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9가-힣]+`)

func orSlug(explicit, title string) string {
	if explicit != "" {
		return explicit
	}
	s := slugUnsafe.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

func excerptOf(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#- "))
		if len([]rune(line)) >= 10 {
			if r := []rune(line); len(r) > 120 {
				return string(r[:120])
			}
			return line
		}
	}
	return ""
}
