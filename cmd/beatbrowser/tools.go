package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"beatbrowser/internal/audio"
	"beatbrowser/internal/waveform"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	peaksBars   int
	pruneDays   int
	pruneDryRun bool
)

var peaksCmd = &cobra.Command{
	Use:   "peaks <locator>",
	Short: "Decode a track and print its waveform peaks as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(a.cfg.Waveform.TimeoutSeconds)*time.Second)
		defer cancel()

		data, err := a.sources.Fetch(ctx, args[0])
		if err != nil {
			return err
		}
		buf, err := audio.NewDecoder(a.logger).Decode(data)
		if err != nil {
			return err
		}

		bars := peaksBars
		if bars <= 0 {
			bars = a.cfg.Waveform.Bars
		}
		peaks := waveform.ExtractPeaks(buf, bars, waveform.PeakOptions{
			Stride:  a.cfg.Waveform.Stride,
			FloorDB: a.cfg.Waveform.FloorDB,
			CeilDB:  a.cfg.Waveform.CeilDB,
			Epsilon: a.cfg.Waveform.Epsilon,
		})

		encoder := json.NewEncoder(os.Stdout)
		return encoder.Encode(map[string]interface{}{
			"source":     args[0],
			"sampleRate": buf.SampleRate,
			"duration":   buf.Duration().Seconds(),
			"bars":       len(peaks),
			"peaks":      peaks,
		})
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <locator>",
	Short: "Read a track's duration and tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.extractor.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\n  title:    %s\n  artist:   %s\n  format:   %s\n  duration: %s\n",
			args[0], info.Title, info.Artist, info.Format, info.Duration.Round(time.Millisecond))
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored waveforms not used within the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		days := pruneDays
		if days <= 0 {
			days = a.cfg.Database.RetentionDays
		}
		if days <= 0 {
			return fmt.Errorf("retention must be positive, got %d days", days)
		}
		cutoff := time.Now().AddDate(0, 0, -days)

		if pruneDryRun {
			total, err := a.db.CountPeaks(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.WithFields(logrus.Fields{
				"stored": total,
				"cutoff": cutoff.Format(time.RFC3339),
			}).Info("Dry run, nothing deleted")
			return nil
		}

		removed, err := a.db.PruneBefore(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		a.logger.WithFields(logrus.Fields{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Pruned stored waveforms")
		return nil
	},
}

func init() {
	peaksCmd.Flags().IntVar(&peaksBars, "bars", 0, "number of bars (defaults to the configured count)")
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "retention in days (defaults to database.retention_days)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "report without deleting")
}
