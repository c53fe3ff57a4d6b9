package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/arbor/internal/catalog"
	"github.com/alexanderramin/arbor/internal/cli/formatter"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/repository"
	"github.com/alexanderramin/arbor/internal/service"
	"github.com/alexanderramin/arbor/internal/tree"
	"github.com/alexanderramin/arbor/internal/view"
	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	var name, rootType string
	var sets []string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Start a new tree",
		Long:  "Start a new tree. On a terminal, a missing --name is asked for in a form.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !force {
				_, err := repository.NewSQLiteBlobRepo(app.DB).Get(ctx, currentBlob)
				if err == nil {
					return errors.New("a tree already exists (use --force to replace it)")
				}
				if !errors.Is(err, repository.ErrNotFound) {
					return err
				}
			}

			if name == "" && len(sets) == 0 && app.prompting() {
				if err := app.runForm(initForm(app.registry().Names(), &name, &rootType)); err != nil {
					return fmt.Errorf("init: %w", err)
				}
				name = strings.TrimSpace(name)
			}

			spec, err := app.registry().Lookup(rootType)
			if err != nil {
				return err
			}
			props, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			if name != "" {
				if prop := labelProperty(spec); prop != "" {
					props[prop] = name
				}
			}

			s, err := app.create(ctx, rootType, props)
			if err != nil {
				return err
			}
			if err := app.commit(s, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s tree %s\n", rootType, formatter.Dim(s.svc.RootID()))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Root label")
	cmd.Flags().StringVar(&rootType, "type", catalog.TypeTopic, "Root payload type")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Root property as Name=value (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing tree")

	return cmd
}

// labelProperty picks the property --name fills: the first required string
// property, else the first string property.
func labelProperty(spec *tree.TypeSpec) string {
	first := ""
	for _, p := range spec.Properties {
		if p.Kind != tree.KindString {
			continue
		}
		if p.Required {
			return p.Name
		}
		if first == "" {
			first = p.Name
		}
	}
	return first
}

func newShowCmd(app *App) *cobra.Command {
	var all, withTags bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the tree",
		Long:  "Print the expanded projection of the tree, or every node with --all.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(s *session) error {
				rows, err := s.outline(all)
				if err != nil {
					return err
				}
				if withTags {
					if err := s.attachTags(rows); err != nil {
						return err
					}
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTree(formatter.TreeItems(rows)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Ignore expansion state")
	cmd.Flags().BoolVar(&withTags, "tags", false, "Show tags")

	return cmd
}

// outline returns the root followed by either the visible projection or
// every node in pre-order.
func (s *session) outline(all bool) ([]formatter.TreeItem, error) {
	var rows []formatter.TreeItem
	s.svc.Inspect(func(t *tree.Tree, v *view.View) {
		if all {
			_ = t.Walk(t.RootID(), func(n *tree.Node) bool {
				rows = append(rows, treeItem(n, v))
				return true
			})
			return
		}
		rows = append(rows, treeItem(t.Root(), v))
	})
	if all {
		return rows, nil
	}

	items, err := collectPages(func(token string) (contract.Page[contract.ProjectionItem], error) {
		return result(s.svc.GetProjection(s.ctx, s.agent, contract.GetProjectionRequest{
			Paging: contract.Paging{PageSize: maxPage, PageToken: token},
		}))
	})
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		rows = append(rows, formatter.TreeItem{
			ID:       it.NodeID,
			Label:    it.Label,
			Type:     it.PayloadType,
			Level:    it.Depth,
			Expanded: it.Expanded,
			HasKids:  it.HasChildren,
		})
	}
	return rows, nil
}

func treeItem(n *tree.Node, v *view.View) formatter.TreeItem {
	return formatter.TreeItem{
		ID:       n.ID(),
		Label:    service.Label(n),
		Type:     n.PayloadType(),
		Level:    n.Depth(),
		Expanded: v.IsExpanded(n.ID()),
		HasKids:  n.ChildCount() > 0,
	}
}

// attachTags fills row tags from the tag index.
func (s *session) attachTags(rows []formatter.TreeItem) error {
	all, err := result(s.svc.ListTags(s.ctx, s.agent, contract.ListTagsRequest{}))
	if err != nil {
		return err
	}
	byNode := make(map[string][]string)
	for _, tag := range all.Tags {
		nodes, err := collectPages(func(token string) (contract.Page[contract.NodeInfo], error) {
			return result(s.svc.FindByTag(s.ctx, s.agent, contract.FindByTagRequest{
				Tag:    tag,
				Paging: contract.Paging{PageSize: maxPage, PageToken: token},
			}))
		})
		if err != nil {
			return err
		}
		for _, n := range nodes {
			byNode[n.NodeID] = append(byNode[n.NodeID], tag)
		}
	}
	for i := range rows {
		rows[i].Tags = byNode[rows[i].ID]
	}
	return nil
}

// maxPage asks for the largest page; the service clamps it.
const maxPage = 1 << 20

// collectPages follows NextPageToken until the listing is exhausted.
func collectPages[T any](fetch func(token string) (contract.Page[T], error)) ([]T, error) {
	var (
		out   []T
		token string
	)
	for {
		page, err := fetch(token)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextPageToken == nil {
			return out, nil
		}
		token = *page.NextPageToken
	}
}
