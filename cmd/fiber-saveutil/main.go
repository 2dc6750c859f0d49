package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/zarroboogs/fiber-saveutil/pkg/checksum"
	"github.com/zarroboogs/fiber-saveutil/pkg/convert"
	"github.com/zarroboogs/fiber-saveutil/pkg/keys"
	"github.com/zarroboogs/fiber-saveutil/pkg/logging"
	"github.com/zarroboogs/fiber-saveutil/pkg/save"
)

const version = "0.1.0"

type options struct {
	logLevel string
	keysPath string
	checksum string
	strict   bool
	jobs     int
	raw      bool
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "fiber-saveutil",
		Short:         "Convert console saves to PC saves",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", logging.GetLogLevel(), "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&opts.keysPath, "keys", "", "Path to a keys file overriding the save key")
	pf.StringVar(&opts.checksum, "checksum", checksum.Default.Name, "Checksum variant")
	pf.BoolVar(&opts.strict, "strict", false, "Fail on checksum mismatches")
	pf.IntVarP(&opts.jobs, "jobs", "j", 0, "Number of saves converted at once (0 = number of CPUs)")

	convertCmd := &cobra.Command{
		Use:   "convert <in-dir> [out-dir]",
		Short: "Convert a console save folder into PC saves",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("fiber-saveutil", opts.logLevel, stderr)
			c, err := opts.converter(logger)
			if err != nil {
				return err
			}
			in, out, err := convert.ConvertPaths(args[0], optionalArg(args, 1))
			if err != nil {
				return err
			}

			results, err := c.ConvertTree(cmd.Context(), in, out)
			if err != nil && results == nil {
				return err
			}
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(stderr, "error: %s: %v\n", r.Input, r.Err)
				}
			}
			if n := convert.Failed(results); n > 0 {
				return fmt.Errorf("%d of %d saves failed to convert", n, len(results))
			}
			return err
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump [--raw] <in-file> [out]",
		Short: "Decrypt or re-encrypt a PC save",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("fiber-saveutil", opts.logLevel, stderr)
			c, err := opts.converter(logger)
			if err != nil {
				return err
			}
			_, err = c.DumpFile(args[0], optionalArg(args, 1), opts.raw)
			return err
		},
	}
	dumpCmd.Flags().BoolVar(&opts.raw, "raw", false, "Don't encrypt or compress")

	root.AddCommand(convertCmd, dumpCmd)
	return root
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func (o *options) converter(logger hclog.Logger) (*convert.Converter, error) {
	keys.Reset()
	if o.keysPath != "" {
		if err := keys.Load(o.keysPath); err != nil {
			return nil, fmt.Errorf("loading keys: %w", err)
		}
	} else if err := keys.LoadDefault(); err != nil {
		logger.Debug("using the built-in save key", "reason", err)
	}

	variant, err := checksum.Lookup(o.checksum)
	if err != nil {
		return nil, err
	}

	codec := save.NewCodec(keys.SaveKey(),
		save.WithChecksum(variant.Func()),
		save.WithStrict(o.strict),
		save.WithLogger(logger.Named("codec")),
	)
	return convert.New(codec,
		convert.WithLogger(logger),
		convert.WithJobs(o.jobs),
	), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
