package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/export"
	"github.com/scrypster/storyblok-devtools/internal/notify"
	"github.com/scrypster/storyblok-devtools/internal/relations"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

type analyzeOptions struct {
	language string
	force    bool
	search   string
	inbound  bool
	outbound bool
	output   string
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <slug>",
		Short: "List the stories referencing and referenced by a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, c, opts, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.language, "language", types.DefaultLocale, "locale of the story to load")
	f.BoolVar(&opts.force, "force", false, "ignore cached results and refetch the dataset")
	f.StringVarP(&opts.search, "search", "q", "", "only show relations matching this text")
	f.BoolVar(&opts.inbound, "inbound", true, "show stories referencing the subject")
	f.BoolVar(&opts.outbound, "outbound", true, "show stories the subject references")
	f.StringVarP(&opts.output, "output", "o", "", "write the export document to this file")
	return cmd
}

func runAnalyze(cmd *cobra.Command, c *cli, opts *analyzeOptions, slug string) error {
	a, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, cmd)

	ctx := cmd.Context()
	token, version := a.Analyzer.Credentials()
	if token == "" {
		return engine.ErrMissingToken
	}

	story, err := a.Client.FetchStory(ctx, token, version, slug, opts.language)
	if err != nil {
		return fmt.Errorf("failed to load story %q: %w", slug, err)
	}

	st, err := a.Analyzer.SetSubject(ctx, *story, 1)
	if err == nil && opts.force && st.FromCache {
		st, err = a.Analyzer.Refresh(ctx, true)
	}
	if err != nil {
		return err
	}
	if !st.FromCache {
		notifyBackend(a, notify.EventRelationsUpdated, st.SubjectUUID)
	}

	filter := relations.Filter{Search: opts.search, Inbound: opts.inbound, Outbound: opts.outbound}

	if opts.output != "" {
		if err := writeExport(opts.output, story, st, filter); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "export written to %s\n", opts.output)
	}

	in, out := filter.Apply(st.Inbound, st.Outbound)
	if c.jsonOut {
		st.Inbound, st.Outbound = in, out
		return writeJSON(cmd.OutOrStdout(), st)
	}
	printRelations(cmd.OutOrStdout(), story, st, in, out, filter)
	return nil
}

func writeExport(path string, story *types.Story, st engine.State, filter relations.Filter) error {
	doc, err := export.Build(export.Input{
		Story:           story,
		Inbound:         st.Inbound,
		Outbound:        st.Outbound,
		AnalyzedStories: st.AnalyzedStories,
		DatasetSize:     st.DatasetSize,
		Filter:          filter,
	})
	if errors.Is(err, export.ErrNothingToExport) {
		return fmt.Errorf("nothing to export for %s: %w", story.DisplaySlug(), err)
	}
	if err != nil {
		return err
	}
	data, err := export.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func printRelations(w io.Writer, story *types.Story, st engine.State, in, out []types.RelationEntry, filter relations.Filter) {
	source := "computed"
	if st.FromCache {
		source = "cached"
	}
	fmt.Fprintf(w, "%s (%s) %s\n", story.DisplayName(), story.DisplaySlug(), story.UUID)
	fmt.Fprintf(w, "analyzed %d stories, %s\n", st.AnalyzedStories, source)

	if filter.Inbound {
		fmt.Fprintf(w, "\nInbound: %d stories, %d occurrences\n", len(st.Inbound), types.CountOccurrences(st.Inbound))
		printEntries(w, in)
	}
	if filter.Outbound {
		fmt.Fprintf(w, "\nOutbound: %d stories, %d occurrences\n", len(st.Outbound), types.CountOccurrences(st.Outbound))
		printEntries(w, out)
	}
}

func printEntries(w io.Writer, entries []types.RelationEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		paths := make([]string, 0, len(e.Occurrences))
		for _, occ := range e.Occurrences {
			paths = append(paths, occ.Path)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.StoryName, e.StorySlug, strings.Join(paths, ", "))
	}
	_ = tw.Flush()
}
