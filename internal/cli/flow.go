// flow.go implements the flow and docs commands.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/flow"
)

type flowOptions struct {
	minConfidence float64
	asJSON        bool
}

// flowResult is the JSON shape printed by flow --json.
type flowResult struct {
	Events     int              `json:"events"`
	Discovered []discoveredFlow `json:"discovered"`
	Current    *discoveredFlow  `json:"current,omitempty"`
}

type discoveredFlow struct {
	Name       string  `json:"name"`
	ID         flow.ID `json:"flowId"`
	Confidence float64 `json:"confidence"`
	Triggering int     `json:"triggeringEvents,omitempty"`
}

func newFlowCommand(a *app) *cobra.Command {
	opts := &flowOptions{}
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Detect the flows present in the recent events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runFlow(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Float64Var(&opts.minConfidence, "min-confidence", 0.5, "Lowest confidence reported by the pattern detector")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) runFlow(ctx context.Context, opts *flowOptions, out io.Writer) error {
	src, err := a.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	events, err := src.recent(ctx)
	if err != nil {
		return err
	}

	detector := flow.NewDetector(flow.WithDetectorClock(src.clock))
	responses, err := detector.AnalyzeEventSequence(ctx, flow.AnalysisRequest{
		AnalysisID:        uuid.NewString(),
		Events:            events,
		MinimumConfidence: opts.minConfidence,
		WindowStart:       src.now.Add(-src.window),
		Window:            src.window,
		RequestedBy:       "bytehot-diag",
		RequestedAt:       src.now,
	})
	if err != nil {
		return err
	}

	result := flowResult{Events: len(events), Discovered: []discoveredFlow{}}
	for _, r := range responses {
		if r.Kind != flow.ResponseFlowDiscovered {
			continue
		}
		result.Discovered = append(result.Discovered, discoveredFlow{
			Name:       r.Flow.Name,
			ID:         r.Flow.ID,
			Confidence: r.Confidence,
			Triggering: len(r.TriggeringEvents),
		})
	}

	provider := a.docProvider(src, events)
	if current, ok := provider.DetectCurrentFlow(ctx); ok {
		result.Current = &discoveredFlow{Name: current.Name, ID: current.ID, Confidence: current.Confidence}
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "Analyzed %d events\n", result.Events)
	if len(result.Discovered) == 0 {
		fmt.Fprintln(out, "No known flow patterns matched")
	}
	for _, d := range result.Discovered {
		fmt.Fprintf(out, "  %-28s %5.1f%%  (%d events)\n", d.Name, d.Confidence*100, d.Triggering)
	}
	if result.Current != nil {
		fmt.Fprintf(out, "Current flow: %s (%.1f%%)\n", result.Current.Name, result.Current.Confidence*100)
	} else {
		fmt.Fprintln(out, "Current flow: none")
	}
	return nil
}

// docProvider builds a provider fed with events and, when src is set, pinned
// to the replay clock. The CLI's own call stack says nothing about the agent, so stack
// detection is disabled.
func (a *app) docProvider(src *eventSource, events []bytehot.Event) *flow.DocProvider {
	opts := append(a.cfg.DocProviderOptions(),
		flow.WithLogger(a.logger),
		flow.WithStackSource(func() []bytehot.StackFrame { return nil }),
	)
	if src != nil {
		opts = append(opts, flow.WithClock(src.clock))
	}
	p := flow.NewDocProvider(opts...)
	for _, ev := range events {
		p.AddRecentEvent(ev)
	}
	return p
}

type docsOptions struct {
	method  string
	testing bool
	metrics bool
}

func newDocsCommand(a *app) *cobra.Command {
	opts := &docsOptions{}
	cmd := &cobra.Command{
		Use:   "docs <class>",
		Short: "Print documentation links for a class, contextualised by the current flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDocs(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.method, "method", "", "Also link the documentation of this method")
	cmd.Flags().BoolVar(&opts.testing, "testing", false, "Also link the testing documentation")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print the provider's cache metrics as JSON")
	return cmd
}

// runDocs works without an event source; contextual links then fall back to
// the basic ones.
func (a *app) runDocs(ctx context.Context, className string, opts *docsOptions, out io.Writer) error {
	var provider *flow.DocProvider
	if a.eventsPath != "" || a.cfg.Redis.Addr != "" {
		src, err := a.openSource(ctx)
		if err != nil {
			return err
		}
		defer src.Close()
		events, err := src.recent(ctx)
		if err != nil {
			return err
		}
		provider = a.docProvider(src, events)
	} else {
		provider = a.docProvider(nil, nil)
	}

	fmt.Fprintf(out, "docs:       %s\n", provider.DocumentationURL(className))
	fmt.Fprintf(out, "contextual: %s\n", provider.ContextualDocumentationURL(ctx, className))
	if opts.method != "" {
		fmt.Fprintf(out, "method:     %s\n", provider.MethodDocumentationURL(className, opts.method))
	}
	if opts.testing {
		fmt.Fprintf(out, "testing:    %s\n", provider.TestingDocumentationURL(className))
	}
	if opts.metrics {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(provider.PerformanceMetrics())
	}
	return nil
}
