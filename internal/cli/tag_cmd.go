package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/arbor/internal/cli/formatter"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/spf13/cobra"
)

func newTagCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage node tags",
	}

	cmd.AddCommand(
		newTagEditCmd(app, "add", "Add tags to a node"),
		newTagEditCmd(app, "rm", "Remove tags from a node"),
		newTagEditCmd(app, "set", "Replace a node's tags"),
		newTagListCmd(app),
		newTagFindCmd(app),
	)

	return cmd
}

func newTagEditCmd(app *App, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " ID TAG...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				id, err := s.resolve(args[0])
				if err != nil {
					return err
				}
				req := contract.TagsRequest{NodeID: id, Tags: args[1:]}
				var res contract.Result[contract.TagsResponse]
				switch verb {
				case "add":
					res = s.svc.AddTags(s.ctx, s.agent, req)
				case "rm":
					res = s.svc.RemoveTags(s.ctx, s.agent, req)
				default:
					res = s.svc.ReplaceTags(s.ctx, s.agent, req)
				}
				out, err := mutated(s, res)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatTags(out.Tags))
				return nil
			})
		},
	}
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return formatter.Dim("(no tags)")
	}
	return formatter.StyleBlue.Render(strings.Join(tags, ", "))
}

func newTagListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [ID]",
		Short: "List a node's tags, or every tag in use",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				var id string
				if len(args) == 1 {
					var err error
					if id, err = s.resolve(args[0]); err != nil {
						return err
					}
				}
				out, err := result(s.svc.ListTags(s.ctx, s.agent, contract.ListTagsRequest{NodeID: id}))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatTags(out.Tags))
				return nil
			})
		},
	}
}

func newTagFindCmd(app *App) *cobra.Command {
	var root string
	var limit int

	cmd := &cobra.Command{
		Use:   "find TAG",
		Short: "Find nodes carrying a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				rootID, err := s.resolve(root)
				if err != nil {
					return err
				}
				page, err := result(s.svc.FindByTag(s.ctx, s.agent, contract.FindByTagRequest{
					Tag: args[0], RootID: rootID, Paging: contract.Paging{PageSize: limit},
				}))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatNodeTable(page))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Search below and including this node")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum matches to print")

	return cmd
}

func newBookmarkCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookmark",
		Short: "Manage named bookmarks",
	}

	var meta []string
	add := &cobra.Command{
		Use:   "add NAME ID",
		Short: "Bookmark a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata := make(map[string]string, len(meta))
			for _, m := range meta {
				k, v, ok := strings.Cut(m, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid metadata %q (want key=value)", m)
				}
				metadata[k] = v
			}
			return app.withSession(cmd, func(s *session) error {
				id, err := s.resolve(args[1])
				if err != nil {
					return err
				}
				b, err := mutated(s, s.svc.CreateBookmark(s.ctx, s.agent, contract.CreateBookmarkRequest{
					Name: args[0], NodeID: id, Metadata: metadata,
				}))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Bookmarked %s as %s %s\n", formatter.TruncID(b.NodeID), formatter.Bold(b.Name), formatter.Dim(b.ID))
				return nil
			})
		},
	}
	add.Flags().StringArrayVar(&meta, "meta", nil, "Metadata as key=value (repeatable)")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List bookmarks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				marks, err := result(s.svc.ListBookmarks(s.ctx, s.agent, contract.ListBookmarksRequest{}))
				if err != nil {
					return err
				}
				if len(marks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No bookmarks."))
					return nil
				}
				now := app.now()
				rows := make([][]string, len(marks))
				for i, b := range marks {
					rows[i] = []string{formatter.TruncID(b.ID), b.Name, formatter.TruncID(b.NodeID), b.CreatedBy, formatter.HumanTimestamp(b.CreatedAt, now)}
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable([]string{"ID", "NAME", "NODE", "BY", "CREATED"}, rows))
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm BOOKMARK_ID",
		Short: "Delete a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				b, err := mutated(s, s.svc.DeleteBookmark(s.ctx, s.agent, contract.DeleteBookmarkRequest{BookmarkID: args[0]}))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted bookmark %s\n", formatter.Bold(b.Name))
				return nil
			})
		},
	}

	cmd.AddCommand(add, ls, rm)
	return cmd
}

func newFilterCmd(app *App) *cobra.Command {
	var include, exclude []string

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Choose which properties reads expose",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				out, err := mutated(s, s.svc.SetPropertyFilters(s.ctx, s.agent, contract.SetPropertyFiltersRequest{
					Included: include, Excluded: exclude,
				}))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "include: %s\nexclude: %s\n",
					formatTags(out.Included), formatTags(out.Excluded))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&include, "include", nil, "Property paths to keep (empty keeps all)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Property paths to hide")

	return cmd
}
