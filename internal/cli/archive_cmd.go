package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/alexanderramin/arbor/internal/cli/formatter"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/repository"
	"github.com/spf13/cobra"
)

func newValidateCmd(app *App) *cobra.Command {
	var root string
	var require []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check required properties across a subtree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				rootID, err := s.resolve(root)
				if err != nil {
					return err
				}
				report, err := result(s.svc.ValidateTree(s.ctx, s.agent, contract.ValidateTreeRequest{
					RootID: rootID, RequiredProperties: require,
				}))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if report.Valid {
					fmt.Fprintf(out, "%s %d node(s) checked\n", formatter.StyleGreen.Render("✔ valid"), report.NodesChecked)
					return nil
				}
				fmt.Fprintf(out, "%s %d issue(s) in %d node(s)\n", formatter.StyleRed.Render("✘ invalid"), len(report.Issues), report.NodesChecked)
				for _, issue := range report.Issues {
					fmt.Fprintf(out, "  %s %s\n", formatter.Dim("•"), issue)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Subtree to check (default the whole tree)")
	cmd.Flags().StringSliceVar(&require, "require", nil, "Extra required property paths")

	return cmd
}

func newDiffCmd(app *App) *cobra.Command {
	var ids, structureOnly bool

	cmd := &cobra.Command{
		Use:   "diff LEFT RIGHT",
		Short: "Compare two subtrees",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				refs, err := s.resolveAll(args)
				if err != nil {
					return err
				}
				req := contract.NewDiffTreesRequest(refs[0], refs[1])
				req.CompareNodeIDs = ids
				if structureOnly {
					req.ComparePayload = false
					req.CompareMetadata = false
				}
				diff, err := result(s.svc.DiffTrees(s.ctx, s.agent, req))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if diff.Equal {
					fmt.Fprintln(out, formatter.StyleGreen.Render("Subtrees are equal."))
					return nil
				}
				keys := make([]string, 0, len(diff.Differences))
				for k := range diff.Differences {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "%s  %v\n", formatter.StyleYellow.Render(k), diff.Differences[k])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&ids, "ids", false, "Also compare node IDs")
	cmd.Flags().BoolVar(&structureOnly, "structure", false, "Compare only shape and types")

	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var node, format, output string
	var gzip, noView, noTags bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Serialize the tree or a subtree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				id, err := s.resolve(node)
				if err != nil {
					return err
				}
				req := contract.NewExportTreeRequest()
				req.NodeID = id
				req.Format = format
				req.Compress = gzip
				req.IncludeViewState = !noView
				req.IncludeTags = !noTags
				res, err := result(s.svc.ExportTree(s.ctx, s.agent, req))
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					fmt.Fprintln(cmd.OutOrStdout(), res.Data)
					return nil
				}
				if err := os.WriteFile(output, []byte(res.Data), 0o644); err != nil {
					return fmt.Errorf("writing export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d node(s) to %s\n", res.NodeCount, output)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&node, "node", "", "Subtree root (default the whole tree)")
	cmd.Flags().StringVar(&format, "format", "json", "json, xml or csv")
	cmd.Flags().BoolVar(&gzip, "gzip", false, "Gzip and base64 the output")
	cmd.Flags().BoolVar(&noView, "no-view", false, "Omit expansion state and filters")
	cmd.Flags().BoolVar(&noTags, "no-tags", false, "Omit tags")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	var target, mode, format string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Append or replace a subtree from an export (FILE may be -)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return app.withSession(cmd, func(s *session) error {
				id, err := s.resolve(target)
				if err != nil {
					return err
				}
				req := contract.NewImportTreeRequest(string(data))
				req.TargetID = id
				req.Mode = mode
				req.Format = format
				res, err := mutated(s, s.svc.ImportTree(s.ctx, s.agent, req))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d node(s) (%s) at %s\n", res.NodeCount, res.Mode, formatter.Dim(res.RootID))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Parent for append, node for replace (default the root)")
	cmd.Flags().StringVar(&mode, "mode", "append", "append or replace")
	cmd.Flags().StringVar(&format, "format", "", "json, xml or csv (default detect)")

	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func newSnapshotCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture and restore named subtree states",
	}

	var node string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Capture a subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				id, err := s.resolve(node)
				if err != nil {
					return err
				}
				info, err := mutated(s, s.svc.CreateSnapshot(s.ctx, s.agent, contract.CreateSnapshotRequest{Name: args[0], NodeID: id}))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s %s (%d nodes)\n", formatter.Bold(info.Name), formatter.Dim(info.ID), info.NodeCount)
				return nil
			})
		},
	}
	create.Flags().StringVar(&node, "node", "", "Subtree root (default the whole tree)")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				snaps, err := result(s.svc.ListSnapshots(s.ctx, s.agent, contract.ListSnapshotsRequest{}))
				if err != nil {
					return err
				}
				if len(snaps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No snapshots."))
					return nil
				}
				now := app.now()
				rows := make([][]string, len(snaps))
				for i, sn := range snaps {
					rows[i] = []string{formatter.TruncID(sn.ID), sn.Name, formatter.TruncID(sn.RootID), strconv.Itoa(sn.NodeCount), formatter.HumanTimestamp(sn.CreatedAt, now)}
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable([]string{"ID", "NAME", "ROOT", "NODES", "CREATED"}, rows))
				return nil
			})
		},
	}

	restore := &cobra.Command{
		Use:   "restore SNAPSHOT",
		Short: "Replace a subtree with a snapshot (by ID, ID prefix or name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				id, err := s.snapshotID(args[0])
				if err != nil {
					return err
				}
				info, err := mutated(s, s.svc.RestoreSnapshot(s.ctx, s.agent, contract.RestoreSnapshotRequest{SnapshotID: id}))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", formatter.Bold(info.Name))
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm SNAPSHOT",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				id, err := s.snapshotID(args[0])
				if err != nil {
					return err
				}
				info, err := mutated(s, s.svc.DeleteSnapshot(s.ctx, s.agent, contract.DeleteSnapshotRequest{SnapshotID: id}))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted snapshot %s\n", formatter.Bold(info.Name))
				return nil
			})
		},
	}

	cmd.AddCommand(create, ls, restore, rm)
	return cmd
}

// snapshotID matches ref against snapshot IDs, ID prefixes, then names.
// Unmatched references pass through.
func (s *session) snapshotID(ref string) (string, error) {
	snaps, err := result(s.svc.ListSnapshots(s.ctx, s.agent, contract.ListSnapshotsRequest{}))
	if err != nil {
		return "", err
	}
	var byPrefix, byName []string
	for _, sn := range snaps {
		if sn.ID == ref {
			return sn.ID, nil
		}
		if strings.HasPrefix(sn.ID, ref) {
			byPrefix = append(byPrefix, sn.ID)
		}
		if sn.Name == ref {
			byName = append(byName, sn.ID)
		}
	}
	for _, ids := range [][]string{byPrefix, byName} {
		switch len(ids) {
		case 0:
			continue
		case 1:
			return ids[0], nil
		default:
			return "", fmt.Errorf("snapshot reference %q is ambiguous (%d matches)", ref, len(ids))
		}
	}
	return ref, nil
}

func newAuditCmd(app *App) *cobra.Command {
	var limit int
	var byAgent bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audited calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := repository.NewSQLiteAuditRepo(app.DB)
			out := cmd.OutOrStdout()
			if byAgent {
				counts, err := repo.CountByAgent(cmd.Context())
				if err != nil {
					return err
				}
				agents := make([]string, 0, len(counts))
				for a := range counts {
					agents = append(agents, a)
				}
				sort.Strings(agents)
				rows := make([][]string, len(agents))
				for i, a := range agents {
					rows[i] = []string{a, strconv.Itoa(counts[a])}
				}
				fmt.Fprint(out, formatter.RenderTable([]string{"AGENT", "CALLS"}, rows))
				return nil
			}

			entries, err := repo.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, formatter.Dim("No audit entries."))
				return nil
			}
			now := app.now()
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					formatter.HumanTimestamp(e.Timestamp, now),
					e.AgentID,
					e.Operation,
					formatter.TruncID(e.Target),
					formatter.Outcome(e.Success, e.ErrorCode),
				}
			}
			fmt.Fprint(out, formatter.RenderTable([]string{"WHEN", "AGENT", "OPERATION", "TARGET", "OUTCOME"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Entries to show")
	cmd.Flags().BoolVar(&byAgent, "by-agent", false, "Count calls per agent instead")

	return cmd
}
