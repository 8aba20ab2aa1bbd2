package cmd

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/logreplay/camserve/internal/camera"
	"github.com/logreplay/camserve/internal/nv12"
	"github.com/logreplay/camserve/internal/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type LayoutOptions struct {
	OutputFormat string
}

func NewLayoutCommand() *cobra.Command {
	opts := &LayoutOptions{}
	cmd := &cobra.Command{
		Use:   "layout WIDTHxHEIGHT",
		Short: "Print the NV12 buffer layout for a frame size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ExecuteLayout(cmd, opts, args[0])
		},
		Example: `  camserve layout 1928x1208
  camserve layout 1344x760 -o json`,
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&opts.OutputFormat, "output", "o", "table", "Output format (table|json)")

	return cmd
}

func ExecuteLayout(cmd *cobra.Command, opts *LayoutOptions, arg string) error {
	size, err := parseSize(arg)
	if err != nil {
		return err
	}
	info := nv12.Layout(size.Width, size.Height)
	out := cmd.OutOrStdout()

	switch opts.OutputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "table":
		columns := []util.TableColumn{
			{Header: "FIELD", Key: "field"},
			{Header: "VALUE", Key: "value"},
		}
		rows := []map[string]interface{}{
			{"field": "width", "value": info.Width},
			{"field": "height", "value": info.Height},
			{"field": "stride", "value": info.Stride},
			{"field": "y scanlines", "value": info.Scanlines},
			{"field": "uv scanlines", "value": info.UVScanlines},
			{"field": "uv offset", "value": info.UVOffset},
			{"field": "buffer size", "value": info.Size},
		}
		util.RenderTable(out, columns, rows)
		return nil
	default:
		return errors.Errorf("unsupported output format %q", opts.OutputFormat)
	}
}

// parseSize parses "WIDTHxHEIGHT".
func parseSize(s string) (camera.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return camera.Size{}, errors.Errorf("invalid size %q, expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return camera.Size{}, errors.Wrapf(err, "invalid width in %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return camera.Size{}, errors.Wrapf(err, "invalid height in %q", s)
	}
	size := camera.Size{Width: width, Height: height}
	if !size.Valid() {
		return camera.Size{}, errors.Errorf("frame size %s must be positive", size)
	}
	return size, nil
}
