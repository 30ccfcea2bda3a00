// testgen.go implements the testgen command.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rydnr/bytehot-observe/pkg/bytehot/testgen"
)

type testGenOptions struct {
	failureFlags
	framework string
	all       bool
}

func newTestGenCommand(a *app) *cobra.Command {
	opts := &testGenOptions{}
	cmd := &cobra.Command{
		Use:   "testgen",
		Short: "Generate a reproduction test for a failure at the end of the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTestGen(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.framework, "framework", "", "JUNIT5, TESTNG or BYTEHOT_EVENT_DRIVEN (overrides testgen.framework)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Also emit the minimal and system-state variants")
	return cmd
}

func (a *app) runTestGen(ctx context.Context, opts *testGenOptions, out io.Writer) error {
	cfg := a.cfg.TestGenConfig()
	if opts.framework != "" {
		f, err := testgen.ParseFramework(opts.framework)
		if err != nil {
			return err
		}
		cfg.Framework = f
	}

	src, err := a.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	se := a.snapshotGenerator(src).CaptureSnapshotError(ctx, opts.failure(), "")
	gen := testgen.New(cfg)

	cases := []testgen.TestCase{gen.GenerateTestCase(se)}
	if opts.all {
		cases = gen.GenerateMultipleTestCases(se)
	}
	for i, tc := range cases {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "// %s.%s: %s\n", tc.ClassName, tc.MethodName, tc.Description)
		fmt.Fprintln(out, tc.Source)
	}
	return nil
}
