package cli

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/generation"
	"github.com/dellis1972/pcl-gen/internal/logger"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <library>",
		Short: "Write stub declarations for a library",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runGenerate,
	}
	addGenerateFlags(cmd)
	return cmd
}

func addGenerateFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("output", "o", "-", `output file, "-" for standard output`)
	flags.String("lang", "csharp", "output language: csharp or go")
	flags.String("go-package", generation.DefaultPackageName, "package clause of Go output")
	flags.StringSlice("preamble", generation.DefaultPreamble, "namespaces imported by C# output")
}

func (a *app) runGenerate(cmd *cobra.Command, args []string) error {
	gen, err := generation.NewGenerator(a.cfg.Output.Lang, generation.Options{
		Preamble:    a.cfg.Output.Preamble,
		PackageName: a.cfg.Output.GoPackage,
	})
	if err != nil {
		return err
	}

	s, cat, err := a.extract(args[0])
	if err != nil {
		return err
	}
	if cat.Skipped > 0 {
		reportWarning(cmd.ErrOrStderr(), "%d captures were skipped because of unresolved metadata", cat.Skipped)
	}

	logger.Logger.Debugw("Rendering", logger.FieldPath, a.cfg.Output.Path, logger.FieldKind, a.cfg.Output.Lang, logger.FieldCount, s.Len())
	return a.writeOutput(a.cfg.Output.Path, func(w io.Writer) error {
		return gen.Generate(w, s)
	})
}

// writeOutput opens the sink, buffers render into it and flushes and closes
// it whatever render returns.
func (a *app) writeOutput(path string, render func(w io.Writer) error) (err error) {
	var sink io.WriteCloser
	if path == "-" {
		sink = nopCloser{a.stdout}
	} else {
		file, err := os.Create(path)
		if err != nil {
			return errors.WithHint(errors.Wrapf(err, "creating %s", path), "check that the output directory exists")
		}
		sink = file
	}

	buffered := bufio.NewWriter(sink)
	defer func() {
		if flushErr := buffered.Flush(); err == nil && flushErr != nil {
			err = errors.Wrapf(flushErr, "writing %s", path)
		}
		if closeErr := sink.Close(); err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "closing %s", path)
		}
	}()
	return render(buffered)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
