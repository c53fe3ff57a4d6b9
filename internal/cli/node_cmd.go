package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/arbor/internal/catalog"
	"github.com/alexanderramin/arbor/internal/cli/formatter"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/spf13/cobra"
)

func newNodeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Inspect and edit nodes",
	}

	cmd.AddCommand(
		newNodeAddCmd(app),
		newNodeGetCmd(app),
		newNodeUpdateCmd(app),
		newNodeRemoveCmd(app),
		newNodeMoveCmd(app),
		newNodeCloneCmd(app),
		newNodeSortCmd(app),
		newNodeExpandCmd(app, true),
		newNodeExpandCmd(app, false),
	)

	return cmd
}

// versionFlag registers --if-version; the returned func yields the token only
// when the flag was given.
func versionFlag(cmd *cobra.Command) func() *int64 {
	var v int64
	cmd.Flags().Int64Var(&v, "if-version", 0, "Fail with conflict unless the scope is at this version")
	return func() *int64 {
		if !cmd.Flags().Changed("if-version") {
			return nil
		}
		return &v
	}
}

// indexFlag registers --index; nil means append.
func indexFlag(cmd *cobra.Command) func() *int {
	var i int
	cmd.Flags().IntVar(&i, "index", 0, "Position among the new siblings (default append)")
	return func() *int {
		if !cmd.Flags().Changed("index") {
			return nil
		}
		return &i
	}
}

func newNodeAddCmd(app *App) *cobra.Command {
	var payloadType, name string
	var sets []string

	cmd := &cobra.Command{
		Use:   "add PARENT",
		Short: "Add a child node",
		Args:  cobra.ExactArgs(1),
	}
	index := indexFlag(cmd)
	version := versionFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		props, err := parseAssignments(sets)
		if err != nil {
			return err
		}
		if name != "" {
			spec, err := app.registry().Lookup(payloadType)
			if err != nil {
				return err
			}
			if prop := labelProperty(spec); prop != "" {
				props[prop] = name
			}
		}
		return app.withSession(cmd, func(s *session) error {
			parent, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			info, err := mutated(s, s.svc.AddChild(s.ctx, s.agent, contract.AddChildRequest{
				MutationOptions: contract.MutationOptions{VersionToken: version()},
				ParentID:        parent,
				PayloadType:     payloadType,
				Properties:      props,
				Index:           index(),
			}))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s\n", payloadType, formatter.Dim(info.NodeID))
			return nil
		})
	}

	cmd.Flags().StringVar(&payloadType, "type", catalog.TypeTopic, "Payload type")
	cmd.Flags().StringVar(&name, "name", "", "Label for the new node")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Property as Name=value (repeatable)")

	return cmd
}

func newNodeGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				id, err := s.resolve(args[0])
				if err != nil {
					return err
				}
				info, err := result(s.svc.GetNode(s.ctx, s.agent, contract.GetNodeRequest{NodeID: id}))
				if err != nil {
					return err
				}
				ancestors, err := result(s.svc.GetAncestors(s.ctx, s.agent, contract.GetAncestorsRequest{NodeID: id}))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatNode(info, ancestors))
				return nil
			})
		},
	}
}

func formatNode(info contract.NodeInfo, ancestors []contract.NodeInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", formatter.Bold(info.PayloadType), formatter.Dim(info.NodeID))
	if len(ancestors) > 0 {
		path := make([]string, 0, len(ancestors))
		for i := len(ancestors) - 1; i >= 0; i-- {
			path = append(path, formatter.TruncID(ancestors[i].NodeID))
		}
		fmt.Fprintf(&b, "%s  %s\n", formatter.Dim("PATH    "), strings.Join(path, " / "))
	}
	fmt.Fprintf(&b, "%s  %d\n", formatter.Dim("DEPTH   "), info.Depth)
	fmt.Fprintf(&b, "%s  %d\n", formatter.Dim("CHILDREN"), info.ChildCount)
	if len(info.Tags) > 0 {
		fmt.Fprintf(&b, "%s  %s\n", formatter.Dim("TAGS    "), formatter.StyleBlue.Render(strings.Join(info.Tags, ", ")))
	}
	b.WriteString("\n")
	b.WriteString(formatter.Properties(info.Properties))
	return formatter.RenderBox("node", strings.TrimRight(b.String(), "\n"))
}

func newNodeUpdateCmd(app *App) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Set node properties",
		Args:  cobra.ExactArgs(1),
	}
	version := versionFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		props, err := parseAssignments(sets)
		if err != nil {
			return err
		}
		if len(props) == 0 {
			return errors.New("nothing to update (use --set Name=value)")
		}
		return app.withSession(cmd, func(s *session) error {
			id, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			opts := contract.MutationOptions{VersionToken: version()}
			var info contract.NodeInfo
			if len(props) == 1 {
				for name, value := range props {
					info, err = mutated(s, s.svc.UpdatePayloadProperty(s.ctx, s.agent, contract.UpdatePayloadPropertyRequest{
						MutationOptions: opts, NodeID: id, PropertyName: name, Value: value,
					}))
				}
			} else {
				info, err = mutated(s, s.svc.UpdatePayload(s.ctx, s.agent, contract.UpdatePayloadRequest{
					MutationOptions: opts, NodeID: id, Properties: props,
				}))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", formatter.Dim(info.NodeID))
			return nil
		})
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Property as Name=value (repeatable)")

	return cmd
}

func newNodeRemoveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a node and its subtree",
		Args:  cobra.ExactArgs(1),
	}
	version := versionFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return app.withSession(cmd, func(s *session) error {
			id, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			res, err := mutated(s, s.svc.RemoveNode(s.ctx, s.agent, contract.RemoveNodeRequest{
				MutationOptions: contract.MutationOptions{VersionToken: version()},
				NodeID:          id,
			}))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d node(s)\n", len(res.RemovedIDs))
			return nil
		})
	}

	return cmd
}

func newNodeMoveCmd(app *App) *cobra.Command {
	var to, before, after string

	cmd := &cobra.Command{
		Use:   "move ID",
		Short: "Move a node under a new parent or next to a sibling",
		Args:  cobra.ExactArgs(1),
	}
	index := indexFlag(cmd)
	version := versionFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		given := 0
		for _, v := range []string{to, before, after} {
			if v != "" {
				given++
			}
		}
		if given != 1 {
			return errors.New("exactly one of --to, --before or --after is required")
		}
		return app.withSession(cmd, func(s *session) error {
			refs, err := s.resolveAll([]string{args[0], to, before, after})
			if err != nil {
				return err
			}
			id := refs[0]
			opts := contract.MutationOptions{VersionToken: version()}
			var res contract.Result[contract.NodeInfo]
			switch {
			case to != "":
				res = s.svc.MoveNode(s.ctx, s.agent, contract.MoveNodeRequest{
					MutationOptions: opts, NodeID: id, NewParentID: refs[1], Index: index(),
				})
			case before != "":
				res = s.svc.MoveBefore(s.ctx, s.agent, contract.MoveRelativeRequest{
					MutationOptions: opts, NodeID: id, SiblingID: refs[2],
				})
			default:
				res = s.svc.MoveAfter(s.ctx, s.agent, contract.MoveRelativeRequest{
					MutationOptions: opts, NodeID: id, SiblingID: refs[3],
				})
			}
			info, err := mutated(s, res)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s under %s\n", formatter.Dim(info.NodeID), formatter.Dim(info.ParentID))
			return nil
		})
	}

	cmd.Flags().StringVar(&to, "to", "", "New parent")
	cmd.Flags().StringVar(&before, "before", "", "Sibling to move in front of")
	cmd.Flags().StringVar(&after, "after", "", "Sibling to move behind")

	return cmd
}

func newNodeCloneCmd(app *App) *cobra.Command {
	var to string
	var structure bool

	cmd := &cobra.Command{
		Use:   "clone ID",
		Short: "Copy a subtree next to itself or under another parent",
		Args:  cobra.ExactArgs(1),
	}
	index := indexFlag(cmd)
	version := versionFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		mode := "duplicate"
		if structure {
			mode = "structure"
		}
		return app.withSession(cmd, func(s *session) error {
			refs, err := s.resolveAll([]string{args[0], to})
			if err != nil {
				return err
			}
			opts := contract.MutationOptions{VersionToken: version()}
			var res contract.Result[contract.NodeInfo]
			if to == "" {
				res = s.svc.CloneNode(s.ctx, s.agent, contract.CloneNodeRequest{
					MutationOptions: opts, NodeID: refs[0], Mode: mode,
				})
			} else {
				res = s.svc.CopySubtree(s.ctx, s.agent, contract.CopySubtreeRequest{
					MutationOptions: opts, SourceID: refs[0], DestinationParentID: refs[1], Mode: mode, Index: index(),
				})
			}
			info, err := mutated(s, res)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cloned into %s\n", formatter.Dim(info.NodeID))
			return nil
		})
	}

	cmd.Flags().StringVar(&to, "to", "", "Destination parent (default: next to the source)")
	cmd.Flags().BoolVar(&structure, "structure", false, "Copy only the shape, with fresh payloads")

	return cmd
}

func newNodeSortCmd(app *App) *cobra.Command {
	var by string
	var desc bool

	cmd := &cobra.Command{
		Use:   "sort PARENT",
		Short: "Reorder children by a property",
		Args:  cobra.ExactArgs(1),
	}
	version := versionFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		direction := "asc"
		if desc {
			direction = "desc"
		}
		return app.withSession(cmd, func(s *session) error {
			id, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			res, err := mutated(s, s.svc.SortChildren(s.ctx, s.agent, contract.SortChildrenRequest{
				MutationOptions: contract.MutationOptions{VersionToken: version()},
				ParentID:        id,
				SortBy:          by,
				Direction:       direction,
			}))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sorted %d children\n", len(res.ChildIDs))
			return nil
		})
	}

	cmd.Flags().StringVar(&by, "by", "Title", "Property path to sort on")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")

	return cmd
}

func newNodeExpandCmd(app *App, expand bool) *cobra.Command {
	var recursive, includeRoot bool
	var depth int

	use, short := "collapse ID", "Hide a node's children"
	if expand {
		use, short = "expand ID", "Show a node's children"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				id, err := s.resolve(args[0])
				if err != nil {
					return err
				}
				var res contract.Result[contract.ExpansionResult]
				switch {
				case recursive:
					res = s.svc.SetExpansionRecursive(s.ctx, s.agent, contract.SetExpansionRecursiveRequest{
						NodeID: id, Expanded: expand, MaxDepth: depth, IncludeRoot: includeRoot,
					})
				case expand:
					res = s.svc.ExpandNode(s.ctx, s.agent, contract.ExpansionRequest{NodeID: id})
				default:
					res = s.svc.CollapseNode(s.ctx, s.agent, contract.ExpansionRequest{NodeID: id})
				}
				out, err := mutated(s, res)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d node(s) changed, %d visible\n", out.Affected, out.VisibleCount)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Apply to the whole subtree")
	cmd.Flags().IntVar(&depth, "depth", 0, "Levels below the node to touch with -r (0 means all)")
	cmd.Flags().BoolVar(&includeRoot, "include-self", true, "With -r, also change the node itself")

	return cmd
}
