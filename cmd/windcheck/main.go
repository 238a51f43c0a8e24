package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"velowind/internal/api"
	"velowind/internal/cache"
	"velowind/internal/config"
	"velowind/internal/metrics"
	"velowind/internal/models"
	"velowind/internal/safety"
	"velowind/internal/wind"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		configPath string
		units      string
		output     string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:           "windcheck",
		Short:         "Wind safety checks for cyclists",
		Long:          "Fetches current and forecast wind and tells whether it is safe to ride",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (defaults and environment when empty)")
	rootCmd.PersistentFlags().StringVarP(&units, "units", "u", "", "Unit system: metric or imperial")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	newService := func() (*wind.Service, *config.Config, error) {
		cfg, err := config.Parse(configPath)
		if err != nil {
			return nil, nil, err
		}
		if units != "" {
			if units != "metric" && units != "imperial" {
				return nil, nil, fmt.Errorf("units must be metric or imperial, got %q", units)
			}
			cfg.Units = units
		}

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if verbose {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}

		client := api.NewWindyClient(cfg.API.Key,
			api.WithBaseURL(cfg.API.BaseURL),
			api.WithModel(cfg.API.Model),
			api.WithTimeout(cfg.Timeout()),
		)
		svc := wind.NewService(client, cache.NewMemoryStore(), metrics.NopSink{}, wind.OptionsFromConfig(cfg), logger)
		return svc, cfg, nil
	}

	var lat, lon float64
	var experience, terrain string
	safetyCmd := &cobra.Command{
		Use:   "safety",
		Short: "Assess whether current wind is safe to ride",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			rec, err := svc.GetWindSafetyRecommendation(cmd.Context(), models.GeoLocation{Lat: lat, Lon: lon},
				safety.ParseExperience(experience), safety.ParseTerrain(terrain))
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(out, rec)
			}
			printRecommendation(out, rec, svc.Options().Units)
			return nil
		},
	}
	safetyCmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	safetyCmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	safetyCmd.Flags().StringVarP(&experience, "experience", "e", "intermediate", "Rider experience (beginner, intermediate, advanced)")
	safetyCmd.Flags().StringVarP(&terrain, "terrain", "t", "flat", "Terrain (flat, exposed_road, mountain_col, mountain_descent)")
	safetyCmd.MarkFlagRequired("lat")
	safetyCmd.MarkFlagRequired("lon")

	var days int
	forecastCmd := &cobra.Command{
		Use:   "forecast",
		Short: "Show the daily wind forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			fc, err := svc.GetWindForecast(cmd.Context(), models.GeoLocation{Lat: lat, Lon: lon}, days)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(out, fc)
			}
			printForecast(out, fc, svc.Options().Units)
			return nil
		},
	}
	forecastCmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	forecastCmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	forecastCmd.Flags().IntVarP(&days, "days", "d", 5, "Number of days (1-10)")
	forecastCmd.MarkFlagRequired("lat")
	forecastCmd.MarkFlagRequired("lon")

	colCmd := &cobra.Command{
		Use:   "col [id]",
		Short: "Check a configured mountain pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService()
			if err != nil {
				return err
			}
			col, ok := cfg.FindCol(args[0])
			if !ok {
				return fmt.Errorf("unknown col %q", args[0])
			}
			report, err := svc.CheckMountainPassWindConditions(cmd.Context(), col.ID, col.Location())
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(out, report)
			}
			fmt.Fprintf(out, "%s\n", col.Name)
			printRecommendation(out, &report.SafetyRecommendation, svc.Options().Units)
			if report.AltitudeSpeed != nil {
				fmt.Fprintf(out, "Altitude: %.1f %s\n", *report.AltitudeSpeed, speedUnit(svc.Options().Units))
			}
			return nil
		},
	}

	rootCmd.AddCommand(safetyCmd, forecastCmd, colCmd)
	rootCmd.SetOut(out)
	rootCmd.SetContext(context.Background())
	return rootCmd
}

func printRecommendation(out io.Writer, rec *models.SafetyRecommendation, units string) {
	unit := speedUnit(units)
	fmt.Fprintf(out, "Wind: %.1f %s, gusts %.1f %s, from %s\n",
		rec.WindData.Speed, unit, rec.WindData.Gust, unit, safety.GetDirectionName(rec.WindData.Direction))
	fmt.Fprintf(out, "Level: %s (safe to ride: %t)\n", rec.SafetyLevel, rec.SafeToRide)
	fmt.Fprintln(out, rec.Recommendation)
}

func printForecast(out io.Writer, fc *models.WindForecast, units string) {
	unit := speedUnit(units)
	fmt.Fprintf(out, "Now: %.1f %s from %s\n", fc.Current.Speed, unit, safety.GetDirectionName(fc.Current.Direction))
	for _, d := range fc.Daily {
		fmt.Fprintf(out, "%s  %5.1f-%5.1f %s  gusts %5.1f  %s\n",
			d.Date, d.Min, d.Max, unit, d.MaxGust, safety.GetDirectionName(d.AvgDirection))
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func speedUnit(units string) string {
	if units == "imperial" {
		return "mph"
	}
	return "km/h"
}
