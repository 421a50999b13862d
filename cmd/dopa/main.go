package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/coolbeans/dopa/pkg/categories"
	"github.com/coolbeans/dopa/pkg/client"
	"github.com/coolbeans/dopa/pkg/config"
	"github.com/coolbeans/dopa/pkg/country"
	"github.com/coolbeans/dopa/pkg/logging"
	"github.com/coolbeans/dopa/pkg/observability"
	"github.com/coolbeans/dopa/pkg/status"
	"github.com/coolbeans/dopa/pkg/table"
)

var version = "0.1.0"

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

// app carries settings shared by every subcommand. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	configPath string
	baseURL    string
	cacheDir   string
	logLevel   string
	format     string

	cfg      config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *observability.ClientCollector
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	dopaApp := &app{}

	rootCmd := &cobra.Command{
		Use:   "dopa",
		Short: "Query the DOPA environmental-data service",
		Long: `dopa queries the Digital Observatory for Protected Areas (DOPA)
eSpecies REST service and prints the results as normalized tables.

It can:
  - List countries, species and IUCN Red List species counts
  - Report protected-area statistics and outlines (GeoJSON)
  - Resolve countries between names and ISO 3166-1 numeric codes
  - Serve the same data over HTTP with Prometheus metrics`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return dopaApp.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&dopaApp.configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&dopaApp.baseURL, "base-url", "", "DOPA service root (overrides config)")
	flags.StringVar(&dopaApp.cacheDir, "cache-dir", "", "Directory for cached responses (overrides config)")
	flags.StringVar(&dopaApp.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVarP(&dopaApp.format, "format", "f", formatTable, "Output format: table, csv, json")

	rootCmd.AddCommand(dopaApp.countriesCmd())
	rootCmd.AddCommand(dopaApp.speciesCmd())
	rootCmd.AddCommand(dopaApp.paStatsCmd())
	rootCmd.AddCommand(dopaApp.paListCmd())
	rootCmd.AddCommand(dopaApp.categoriesCmd())
	rootCmd.AddCommand(dopaApp.resolveCmd())
	rootCmd.AddCommand(dopaApp.cacheCmd())
	rootCmd.AddCommand(dopaApp.serveCmd())

	return rootCmd
}

// setup loads the config file, applies flag overrides and builds the logger.
func (dopaApp *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(dopaApp.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Client.BaseURL = dopaApp.baseURL
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Dir = dopaApp.cacheDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = dopaApp.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch dopaApp.format {
	case formatTable, formatCSV, formatJSON:
	default:
		return fmt.Errorf("unknown --format %q (want table, csv or json)", dopaApp.format)
	}

	dopaApp.cfg = cfg
	dopaApp.logger = logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	dopaApp.registry = prometheus.NewRegistry()
	dopaApp.metrics, err = observability.NewClientCollector(dopaApp.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	return nil
}

func (dopaApp *app) newClient() (*client.Client, error) {
	return client.New(client.FromConfig(dopaApp.cfg),
		client.WithLogger(dopaApp.logger),
		client.WithMetrics(dopaApp.metrics))
}

func (dopaApp *app) countriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Short: "List the countries known to the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dopaClient, err := dopaApp.newClient()
			if err != nil {
				return err
			}
			countries, err := dopaClient.CountryList(cmd.Context())
			if err != nil {
				return err
			}
			return dopaApp.writeTable(cmd.OutOrStdout(), countries)
		},
	}
}

func (dopaApp *app) speciesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "species",
		Short: "List or count the species recorded for a country",
		Long: `List the species recorded for a country, optionally filtered by
IUCN Red List status. Invalid status codes are reported and skipped.

Valid status codes: ` + strings.Join(statusCodes(), ", ") + `

Example:
  dopa species --country Finland --status EN,VU
  dopa species --country 246 --count`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			countryArg, _ := cmd.Flags().GetString("country")
			statuses, _ := cmd.Flags().GetStringSlice("status")
			countOnly, _ := cmd.Flags().GetBool("count")

			dopaClient, err := dopaApp.newClient()
			if err != nil {
				return err
			}

			var species *table.Table
			if countOnly {
				species, err = dopaClient.SpeciesCount(cmd.Context(), countryArg, statuses)
			} else {
				species, err = dopaClient.SpeciesList(cmd.Context(), countryArg, statuses)
			}
			if err != nil {
				return err
			}
			return dopaApp.writeTable(cmd.OutOrStdout(), species)
		},
	}

	cmd.Flags().StringP("country", "c", "", "Country name or ISO 3166-1 numeric code (required)")
	cmd.Flags().StringSliceP("status", "s", nil, "IUCN status codes to include (comma-separated)")
	cmd.Flags().Bool("count", false, "Report counts per status instead of the species list")
	cmd.MarkFlagRequired("country")

	return cmd
}

func (dopaApp *app) paStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pa-stats",
		Short: "Show protected-area statistics for a country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			countryArg, _ := cmd.Flags().GetString("country")

			dopaClient, err := dopaApp.newClient()
			if err != nil {
				return err
			}
			stats, err := dopaClient.ProtectedAreaStats(cmd.Context(), countryArg)
			if err != nil {
				return err
			}
			return dopaApp.writeTable(cmd.OutOrStdout(), stats)
		},
	}

	cmd.Flags().StringP("country", "c", "", "Country name or ISO 3166-1 numeric code (required)")
	cmd.MarkFlagRequired("country")

	return cmd
}

func (dopaApp *app) paListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pa-list",
		Short: "List the protected areas of a country",
		Long: `List the protected areas of a country.

With --geojson the outlines are written as a GeoJSON FeatureCollection.
In table format the WKT outline column is omitted.

Example:
  dopa pa-list --country Finland
  dopa pa-list --country FIN --geojson > finland.geojson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			countryArg, _ := cmd.Flags().GetString("country")
			asGeoJSON, _ := cmd.Flags().GetBool("geojson")

			dopaClient, err := dopaApp.newClient()
			if err != nil {
				return err
			}

			if asGeoJSON {
				collection, err := dopaClient.ProtectedAreaGeometries(cmd.Context(), countryArg)
				if err != nil {
					return err
				}
				data, err := collection.MarshalGeoJSON()
				if err != nil {
					return fmt.Errorf("failed to encode GeoJSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}

			areas, err := dopaClient.ProtectedAreaList(cmd.Context(), countryArg)
			if err != nil {
				return err
			}
			if dopaApp.format == formatTable {
				areas = areas.Without(client.GeometryColumn)
			}
			return dopaApp.writeTable(cmd.OutOrStdout(), areas)
		},
	}

	cmd.Flags().StringP("country", "c", "", "Country name or ISO 3166-1 numeric code (required)")
	cmd.Flags().Bool("geojson", false, "Write outlines as GeoJSON")
	cmd.MarkFlagRequired("country")

	return cmd
}

func (dopaApp *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show the IUCN protected-area management categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dopaApp.writeTable(cmd.OutOrStdout(), categories.Categories())
		},
	}
}

func (dopaApp *app) resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve COUNTRY",
		Short: "Resolve a country name or ISO 3166-1 numeric code",
		Long: `Resolve a country to its ISO 3166-1 numeric code, or with --name to
its canonical name. Names are matched ignoring case and accents, and
common aliases and alpha-3 codes are accepted.

Example:
  dopa resolve Finland        # 246
  dopa resolve 156 --name     # China
  dopa resolve "Cote d'Ivoire"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fullName, _ := cmd.Flags().GetBool("name")

			resolved, err := country.NewResolver(nil).Resolve(args[0], fullName)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resolved)
			return err
		},
	}

	cmd.Flags().Bool("name", false, "Print the canonical country name instead of the code")

	return cmd
}

func (dopaApp *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the on-disk response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dopaApp.cfg.Cache.Dir == "" {
				return fmt.Errorf("no cache directory configured (use --cache-dir or cache.dir)")
			}
			dopaClient, err := dopaApp.newClient()
			if err != nil {
				return err
			}
			removed, err := dopaClient.ClearCache()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached responses from %s\n", removed, dopaApp.cfg.Cache.Dir)
			return nil
		},
	})

	return cmd
}

// writeTable renders normalized in the selected output format.
func (dopaApp *app) writeTable(w io.Writer, normalized *table.Table) error {
	switch dopaApp.format {
	case formatCSV:
		return table.WriteCSV(w, normalized)
	case formatJSON:
		data, err := normalized.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		var indented bytes.Buffer
		if err := json.Indent(&indented, data, "", "  "); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		indented.WriteByte('\n')
		_, err = indented.WriteTo(w)
		return err
	default:
		return table.WriteText(w, normalized)
	}
}

func statusCodes() []string {
	codes := make([]string, 0, len(status.AllCodes))
	for _, code := range status.AllCodes {
		codes = append(codes, string(code))
	}
	return codes
}
