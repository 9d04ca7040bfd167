package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"urgency_detector/internal/config"
	"urgency_detector/internal/logging"
	"urgency_detector/internal/rules"
	"urgency_detector/internal/textproc"
)

var errRuleInvalid = errors.New("rule has validation errors")

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "urgency_detector",
		Short:        "Keyword-rule urgency detection service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults when empty)")

	root.AddCommand(
		newServeCommand(&configPath),
		newNormalizeCommand(&configPath),
		newValidateRuleCommand(&configPath),
		newCheckRuleCommand(&configPath),
	)
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.New(logging.Config{
				Level:   cfg.Logging.Level,
				JSON:    cfg.Logging.JSON,
				Service: "urgency_detector",
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
}

func newNormalizeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize TEXT...",
		Short: "Print the normalized n-gram sequence for each text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := loadNormalizer(*configPath)
			if err != nil {
				return err
			}
			out := make([][]string, 0, len(args))
			for _, text := range args {
				out = append(out, n.Normalize(text))
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newValidateRuleCommand(configPath *string) *cobra.Command {
	var include, exclude []string
	cmd := &cobra.Command{
		Use:   "validate-rule",
		Short: "Check a candidate rule for authoring mistakes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := loadNormalizer(*configPath)
			if err != nil {
				return err
			}
			report := rules.NewValidator(n).Validate(include, exclude)
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.OK {
				return errRuleInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "include phrases")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "exclude phrases")
	_ = cmd.MarkFlagRequired("include")
	return cmd
}

func newCheckRuleCommand(configPath *string) *cobra.Command {
	var include, exclude []string
	cmd := &cobra.Command{
		Use:   "check-rule QUERY...",
		Short: "Score sample queries against a candidate rule",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := loadNormalizer(*configPath)
			if err != nil {
				return err
			}
			preview, err := rules.NewValidator(n).Preview(include, exclude, args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), preview)
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "include phrases")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "exclude phrases")
	_ = cmd.MarkFlagRequired("include")
	return cmd
}

func loadNormalizer(configPath string) (*textproc.Normalizer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return buildNormalizer(cfg.Preprocessing)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
