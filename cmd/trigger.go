package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/events"
)

var (
	triggerBrandID   string
	triggerQueryID   string
	triggerMemoType  string
	triggerScanID    string
	triggerMaxCycles int
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <event>",
	Short: "Publish a pipeline trigger",
	Long: `Publishes one event onto the pipeline. Supported events:

  competitor/discover   run entity discovery for a brand
  query/generate        generate buyer queries for a brand
  scan/run              scan active queries against configured models
  memo/generate         compose a visibility memo
  citation-loop/run     start the bounded discover-scan-analyze loop
  citation/analyze      analyze one scan result
  citation-loop/stop    wind down a brand's running loop`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, err := buildEvent(args[0])
		if err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.router.Publish(cmd.Context(), ev); err != nil {
			return err
		}
		zap.L().Info("trigger published", zap.String("event", ev.EventName()))
		return nil
	},
}

func buildEvent(name string) (events.Event, error) {
	if triggerBrandID == "" && name != events.NameCitationAnalyze {
		return nil, fmt.Errorf("--brand is required for %s", name)
	}

	switch name {
	case events.NameCompetitorDiscover:
		return events.CompetitorDiscover{BrandID: triggerBrandID}, nil
	case events.NameQueryGenerate:
		return events.QueryGenerate{BrandID: triggerBrandID}, nil
	case events.NameScanRun:
		return events.ScanRun{BrandID: triggerBrandID}, nil
	case events.NameMemoGenerate:
		return events.MemoGenerate{BrandID: triggerBrandID, QueryID: triggerQueryID, MemoType: triggerMemoType}, nil
	case events.NameCitationLoopRun:
		return events.CitationLoopRun{BrandID: triggerBrandID, MaxCycles: triggerMaxCycles}, nil
	case events.NameCitationAnalyze:
		if triggerScanID == "" {
			return nil, fmt.Errorf("--scan-result is required for %s", name)
		}
		return events.CitationAnalyze{BrandID: triggerBrandID, ScanResultID: triggerScanID}, nil
	case events.NameCitationLoopStop:
		return events.CitationLoopStop{BrandID: triggerBrandID}, nil
	default:
		return nil, fmt.Errorf("unknown event: %s", name)
	}
}

func init() {
	triggerCmd.Flags().StringVar(&triggerBrandID, "brand", "", "brand ID")
	triggerCmd.Flags().StringVar(&triggerQueryID, "query", "", "query ID (memo/generate)")
	triggerCmd.Flags().StringVar(&triggerMemoType, "memo-type", "", "memo type (memo/generate)")
	triggerCmd.Flags().StringVar(&triggerScanID, "scan-result", "", "scan result ID (citation/analyze)")
	triggerCmd.Flags().IntVar(&triggerMaxCycles, "max-cycles", 0, "loop cycle cap (citation-loop/run, 0 = configured default)")
	rootCmd.AddCommand(triggerCmd)
}
