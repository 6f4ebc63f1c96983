package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"misty/internal/product"
	"misty/internal/ray"
	"misty/internal/services"
	"misty/internal/spectrum"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		rayPath    string
		lines      []string
		paramsPath string
		output     string
		author     string
		startFlag  string
		endFlag    string
		noWrite    bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a spectrum product from a light ray",
		Long: `Build a spectrum product from a light ray.

Each --line term may be "all", an element ("C"), an ion ("C IV"), a full
line name ("C IV 1548") or an identifier ("Ly a"). Without --line the
[lines] default subset from the configuration is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(rayPath) == "" {
				return services.Wrap(services.ErrValidation, "generate", "flags", "--ray is required", nil)
			}
			start, err := parsePosition("--start", startFlag)
			if err != nil {
				return err
			}
			end, err := parsePosition("--end", endFlag)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				lines = cfg.Lines.Default
			}
			if output == "" {
				output = cfg.Output.Filename
			}
			if !cmd.Flags().Changed("author") {
				author = cfg.Output.Author
			}

			r, err := ray.Load(rayPath)
			if err != nil {
				return services.Wrap(services.ErrNotFound, "generate", "load ray", rayPath, err)
			}
			gen, err := ctx.generator()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			builder, err := product.New(gen, product.WithLogger(logger))
			if err != nil {
				return err
			}

			res, err := builder.Build(cmd.Context(), product.Request{
				Ray:              r,
				Lines:            lines,
				Params:           paramsPath,
				Output:           output,
				Author:           author,
				Start:            start,
				End:              end,
				SkipLineSections: noWrite,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", res.Output)
			fmt.Fprintf(out, "  run:      %s\n", res.RunID)
			fmt.Fprintf(out, "  sections: %d\n", res.Sections)
			fmt.Fprintf(out, "  lines:    %s\n", strings.Join(res.Lines, ", "))
			fmt.Fprintf(out, "  elapsed:  %s\n", res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&rayPath, "ray", "r", "", "Light ray FITS file")
	cmd.Flags().StringArrayVarP(&lines, "line", "l", nil, "Line subset term (repeatable)")
	cmd.Flags().StringVarP(&paramsPath, "params", "p", "", "Run parameter file (key = value lines)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Product path (default from config)")
	cmd.Flags().StringVar(&author, "author", "", "AUTHOR card (default from config)")
	cmd.Flags().StringVar(&startFlag, "start", "", "Ray start position as x,y,z")
	cmd.Flags().StringVar(&endFlag, "end", "", "Ray end position as x,y,z")
	cmd.Flags().BoolVar(&noWrite, "no-write-lines", false, "Synthesize lines without storing their sections")
	return cmd
}

func parsePosition(flag, value string) (*spectrum.Position, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	value = strings.TrimSuffix(strings.TrimPrefix(value, "["), "]")
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return nil, services.Wrap(services.ErrValidation, "generate", flag, "expected three comma-separated coordinates", nil)
	}
	var p spectrum.Position
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "generate", flag, fmt.Sprintf("coordinate %d", i+1), err)
		}
		p[i] = v
	}
	return &p, nil
}
