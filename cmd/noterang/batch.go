package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"noterang/internal/batch"
	"noterang/internal/history"
	"noterang/internal/logging"
)

func newBatchCommand() *cobra.Command {
	var maxWorkers int
	cmd := &cobra.Command{
		Use:   "batch <topics-file>",
		Short: "Run many topics concurrently from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			topics, err := loadTopics(args[0])
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				return fmt.Errorf("no topics in %s", args[0])
			}
			fmt.Printf("%s %d topics, %d workers\n", bold("▶ batch"), len(topics), maxWorkers)

			log := logging.NewComponentLogger("Batch")
			orch := batch.New(cfg, maxWorkers, log)
			results := orch.Run(cmd.Context(), topics)

			store, storeErr := history.Open(historyPath())
			if storeErr == nil {
				defer store.Close()
			}

			failures := 0
			for i, res := range results {
				if res.OK {
					fmt.Printf("%s %s %s\n", green("✓"), topics[i].Title, gray(fmt.Sprintf("(%ds)", res.DurationSeconds)))
				} else {
					failures++
					fmt.Printf("%s %s: %s\n", red("✗"), topics[i].Title, res.Error)
				}
				if storeErr == nil {
					store.Record(cmd.Context(), topics[i].Title, "", res)
				}
			}

			fmt.Printf("\n%d/%d succeeded\n", len(results)-failures, len(results))
			if failures > 0 {
				return fmt.Errorf("%d of %d topics failed", failures, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxWorkers, "workers", 2, "maximum concurrent workers")
	return cmd
}

// loadTopics parses a topics file by extension: .yaml/.yml or JSON.
func loadTopics(path string) ([]batch.Topic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics file: %w", err)
	}
	var topics []batch.Topic
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &topics); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &topics); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return topics, nil
}
