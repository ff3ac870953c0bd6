package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	bootstate "github.com/goliatone/go-bootstate"
	"github.com/goliatone/go-bootstate/controls"
	"github.com/goliatone/go-bootstate/explore"
	"github.com/goliatone/go-bootstate/rules"
	"github.com/goliatone/go-bootstate/schema/openapi"
	"github.com/goliatone/go-bootstate/sqllab"
)

type rootOptions struct {
	configPath string
	flags      cliConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{flags: defaultCLIConfig()}

	cmd := &cobra.Command{
		Use:           "bootstatectl",
		Short:         "Bootstrap the initial application state from a saved page",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a TOML config file")
	flags.StringVar(&opts.flags.Variant, "variant", opts.flags.Variant, "page variant: explore or sqllab")
	flags.StringVar(&opts.flags.Registry, "registry", "", "YAML or TOML control registry for the explore variant")
	flags.StringVar(&opts.flags.Evaluator, "evaluator", opts.flags.Evaluator, "validator engine: expr, cel or js")
	flags.StringVar(&opts.flags.UnknownControls, "unknown-controls", opts.flags.UnknownControls, "reject or ignore form data keys naming no control")
	flags.BoolVarP(&opts.flags.Verbose, "verbose", "v", false, "log every stage at debug level")

	cmd.AddCommand(newRenderCmd(opts), newSchemaCmd(opts), newTraceCmd(opts))
	return cmd
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render PAGE",
		Short: "Print the initial state the store is seeded with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := opts.run(cmd, args[0], bootstate.WithRenderer(bootstate.JSONRenderer(cmd.OutOrStdout())))
			return err
		},
	}
}

func newSchemaCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema PAGE",
		Short: "Describe the paths and types of the initial state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch bootstate.SchemaFormat(format) {
			case bootstate.SchemaFormatDescriptors, bootstate.SchemaFormatOpenAPI:
			default:
				return fmt.Errorf("unknown schema format %q", format)
			}
			result, err := opts.run(cmd, args[0])
			if err != nil {
				return err
			}
			var generator bootstate.SchemaGenerator
			if bootstate.SchemaFormat(format) == bootstate.SchemaFormatOpenAPI {
				generator = openapi.NewGenerator(openapi.ForVariant(result.Variant))
			}
			doc, err := result.State.Schema(generator)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(bootstate.SchemaFormatDescriptors), "descriptors or openapi")
	return cmd
}

func newTraceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trace KEY PAGE",
		Short: "Show which scope supplied a top level key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.run(cmd, args[1])
			if err != nil {
				return err
			}
			payload, err := result.State.Trace(args[0]).ToJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		},
	}
}

// run bootstraps the page at path, "-" reading standard input.
func (o *rootOptions) run(cmd *cobra.Command, path string, extra ...bootstate.Option) (*bootstate.Result, error) {
	cfg, err := resolveConfig(cmd.Flags(), o.flags, o.configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Verbose, cmd.ErrOrStderr())
	defer func() { _ = logger.Sync() }()

	variant, err := buildVariant(cfg, logger)
	if err != nil {
		return nil, err
	}
	b, err := bootstate.New(variant, append([]bootstate.Option{bootstate.WithLogger(logger)}, extra...)...)
	if err != nil {
		return nil, err
	}

	var page io.Reader = cmd.InOrStdin()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
		defer file.Close()
		page = file
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return b.Run(ctx, page)
}

func buildVariant(cfg cliConfig, logger *zap.Logger) (bootstate.Variant, error) {
	switch cfg.Variant {
	case sqllab.Name:
		return sqllab.New(), nil
	case explore.Name, "":
	default:
		return nil, fmt.Errorf("unknown variant %q", cfg.Variant)
	}

	evaluator, err := rules.New(cfg.Evaluator, rules.WithProgramCache(rules.NewMemoryCache()))
	if err != nil {
		return nil, err
	}
	registryOpts := []controls.RegistryOption{
		controls.WithEvaluator(evaluator),
		controls.WithEvaluatorLogger(rules.ZapEvaluatorLogger(logger)),
	}
	var registry *controls.Registry
	if cfg.Registry == "" {
		registry = explore.DefaultRegistry(registryOpts...)
	} else if registry, err = controls.LoadFile(cfg.Registry, registryOpts...); err != nil {
		return nil, err
	}
	policy, err := cfg.unknownPolicy()
	if err != nil {
		return nil, err
	}
	return explore.New(explore.WithRegistry(registry), explore.WithUnknownControls(policy)), nil
}

func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), level)
	return zap.New(core).Named("bootstatectl")
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
