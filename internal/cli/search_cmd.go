package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/arbor/internal/cli/formatter"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/spf13/cobra"
)

func newSearchCmd(app *App) *cobra.Command {
	var root, mode, sortBy string
	var where []string
	var desc bool
	var limit int

	cmd := &cobra.Command{
		Use:   "search [EXPRESSION]",
		Short: "Find nodes below a root",
		Long: `Find nodes by expression or by predicates.

An expression combines comparisons with and/or/not and parentheses:
  arbor search 'Priority >= 2 and not Done == true'

Predicates are PATH:OP:VALUE and are combined by --mode (and, or, but-not-if):
  arbor search --where Title:contains:plan --where Done:eq:false --sort Priority --desc`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(where) == 0 {
				return errors.New("give an expression or at least one --where predicate")
			}
			filters, err := parsePredicates(where)
			if err != nil {
				return err
			}
			return app.withSession(cmd, func(s *session) error {
				rootID, err := s.resolve(root)
				if err != nil {
					return err
				}
				paging := contract.Paging{PageSize: limit}
				var res contract.Result[contract.Page[contract.NodeInfo]]
				switch {
				case len(args) == 1:
					res = s.svc.ExpressionSearch(s.ctx, s.agent, contract.ExpressionSearchRequest{
						RootID: rootID, Expression: args[0], Paging: paging,
					})
				case mode == "" && sortBy == "":
					res = s.svc.Search(s.ctx, s.agent, contract.SearchRequest{
						RootID: rootID, Filters: filters, Paging: paging,
					})
				default:
					direction := "asc"
					if desc {
						direction = "desc"
					}
					if mode == "" {
						mode = "and"
					}
					res = s.svc.AdvancedSearch(s.ctx, s.agent, contract.AdvancedSearchRequest{
						RootID:        rootID,
						Group:         contract.PredicateGroup{Mode: mode, Predicates: filters},
						SortBy:        sortBy,
						SortDirection: direction,
						Paging:        paging,
					})
				}
				page, err := result(res)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatNodeTable(page))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Search below this node (default the tree root)")
	cmd.Flags().StringArrayVar(&where, "where", nil, "Predicate as PATH:OP:VALUE (repeatable)")
	cmd.Flags().StringVar(&mode, "mode", "", "Predicate combination: and, or, but-not-if")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Property path to sort matches on")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum matches to print")

	return cmd
}

// parsePredicates splits PATH:OP:VALUE flags. VALUE may contain colons.
func parsePredicates(specs []string) ([]contract.Filter, error) {
	filters := make([]contract.Filter, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid predicate %q (want PATH:OP:VALUE)", spec)
		}
		filters = append(filters, contract.Filter{PropertyPath: parts[0], Operator: parts[1], Value: parts[2]})
	}
	return filters, nil
}

func formatNodeTable(page contract.Page[contract.NodeInfo]) string {
	if len(page.Items) == 0 {
		return formatter.Dim("No matches.") + "\n"
	}
	rows := make([][]string, len(page.Items))
	for i, n := range page.Items {
		rows[i] = []string{
			formatter.TruncID(n.NodeID),
			n.PayloadType,
			nodeLabel(n),
			strconv.Itoa(n.Depth),
			strings.Join(n.Tags, ","),
		}
	}
	out := formatter.RenderTable([]string{"ID", "TYPE", "LABEL", "DEPTH", "TAGS"}, rows)
	if page.TotalCount > len(page.Items) {
		out += formatter.Dim(fmt.Sprintf("%d of %d matches\n", len(page.Items), page.TotalCount))
	}
	return out
}

// nodeLabel mirrors service.Label on the filtered property map.
func nodeLabel(n contract.NodeInfo) string {
	for _, name := range []string{"Name", "Title", "Label", "Text"} {
		if v, ok := n.Properties[name].(string); ok && v != "" {
			return v
		}
	}
	return n.PayloadType
}
