package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rauschecker-sugrue-labs/air-download/internal/config"
	"github.com/spf13/cobra"
)

// defaultSettingsFile is looked up in the home directory when --config
// is not given. A missing file just means defaults.
const defaultSettingsFile = ".air-download.yaml"

// rootFlags carries every command-line override. Flags beat the
// settings file, which beats built-in defaults.
type rootFlags struct {
	configPath string

	url                  string
	credPath             string
	output               string
	mrn                  string
	project              int
	profile              int
	seriesInclusion      string
	modalityInclusion    string
	descriptionInclusion string
	accessionsOnly       bool
	parallel             int
	pollTimeout          time.Duration
	verbose              bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "air-download [ACCESSION]",
		Short: "Download imaging exams from the AIR portal",
		Long: `Command line client for the AIR (Automated Image Retrieval) portal.

Searches for imaging exams by accession number or patient ID (MRN),
asks the server to package the matching series into a zip archive,
and streams the archive to disk.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			accession := ""
			if len(args) > 0 {
				accession = args[0]
			}
			if accession == "" && flags.mrn == "" {
				return fatalUsage(cmd, "must specify either ACCESSION or --mrn")
			}
			settings, err := resolveSettings(cmd, flags)
			if err != nil {
				return err
			}
			return runDownload(cmd.Context(), settings, accession, flags.mrn)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a YAML settings file")
	rootCmd.PersistentFlags().StringVar(&flags.url, "url", "", "AIR API base URL, e.g. https://air.example.edu/api/")
	rootCmd.PersistentFlags().StringVarP(&flags.credPath, "cred-path", "c", "", "Credentials file with AIR_USERNAME and AIR_PASSWORD (falls back to the environment)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output path or directory")
	rootCmd.Flags().StringVar(&flags.mrn, "mrn", "", "Patient ID (MRN) to download")
	rootCmd.Flags().IntVar(&flags.project, "project", 0, "Project ID")
	rootCmd.Flags().IntVar(&flags.profile, "profile", 0, "Anonymization profile ID")
	rootCmd.Flags().StringVarP(&flags.seriesInclusion, "series-inclusion", "s", "", "Comma-separated series description patterns (case insensitive, OR logic), e.g. 't1,spgr,bravo,mpr'")
	rootCmd.Flags().StringVar(&flags.modalityInclusion, "modality-inclusion", "", "Comma-separated exam modality patterns")
	rootCmd.Flags().StringVar(&flags.descriptionInclusion, "description-inclusion", "", "Comma-separated exam description patterns")
	rootCmd.Flags().BoolVar(&flags.accessionsOnly, "accessions-only", false, "Only append matched exams to accessions.csv, download nothing")
	rootCmd.Flags().IntVar(&flags.parallel, "parallel", 0, "Number of exams to download concurrently")
	rootCmd.Flags().DurationVar(&flags.pollTimeout, "poll-timeout", 0, "How long to wait for the server to start packaging one archive")

	rootCmd.AddCommand(newProjectsCommand(flags))
	rootCmd.AddCommand(newProfilesCommand(flags))

	return rootCmd
}

// resolveSettings merges the settings file and command-line flags.
// Only flags the user actually set override the file.
func resolveSettings(cmd *cobra.Command, flags *rootFlags) (*config.Settings, error) {
	path := flags.configPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, defaultSettingsFile)
		}
	}

	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	apply := func(name string, fn func()) {
		if cmd.Flags().Changed(name) || cmd.PersistentFlags().Changed(name) {
			fn()
		}
	}
	apply("url", func() { settings.BaseURL = flags.url })
	apply("cred-path", func() { settings.CredPath = flags.credPath })
	apply("output", func() { settings.Output = flags.output })
	apply("project", func() { settings.ProjectID = flags.project })
	apply("profile", func() { settings.ProfileID = flags.profile })
	apply("series-inclusion", func() { settings.SeriesInclusion = flags.seriesInclusion })
	apply("modality-inclusion", func() { settings.ModalityInclusion = flags.modalityInclusion })
	apply("description-inclusion", func() { settings.DescriptionInclusion = flags.descriptionInclusion })
	apply("accessions-only", func() { settings.AccessionsOnly = flags.accessionsOnly })
	apply("parallel", func() { settings.Parallel = flags.parallel })
	apply("poll-timeout", func() { settings.PollTimeout = flags.pollTimeout })
	apply("verbose", func() { settings.Verbose = flags.verbose })

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func fatalUsage(cmd *cobra.Command, format string, args ...any) error {
	cmd.SilenceUsage = false
	return fmt.Errorf(format, args...)
}
