package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/blockwire/internal/subgraph"
	"github.com/roach88/blockwire/internal/temporal"
)

// NewSubgraphCommand creates the subgraph command group.
func NewSubgraphCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subgraph",
		Short: "Inspect subgraph files",
		Long: `Inspect subgraphs stored as JSON or YAML files, such as the responses
to getEntity and the block entity subgraph an embedder sends.`,
	}
	cmd.AddCommand(newSubgraphRootsCommand(rootOpts))
	cmd.AddCommand(newSubgraphLinksCommand(rootOpts))
	return cmd
}

// RootInfo describes one root of a subgraph.
type RootInfo struct {
	Kind       subgraph.VertexKind `json:"kind"`
	BaseID     string              `json:"baseId"`
	RevisionID string              `json:"revisionId"`
}

// SubgraphRoots lists the roots of sg in root order.
func SubgraphRoots(sg *subgraph.Subgraph) ([]RootInfo, error) {
	if _, err := subgraph.GetRoots(sg); err != nil {
		return nil, err
	}
	out := make([]RootInfo, 0, len(sg.Roots))
	for _, root := range sg.Roots {
		out = append(out, RootInfo{
			Kind:       sg.Vertices[root.BaseID][root.RevisionID].Kind,
			BaseID:     root.BaseID,
			RevisionID: root.RevisionID,
		})
	}
	return out, nil
}

func newSubgraphRootsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roots <subgraph-file>",
		Short: "List the roots of a subgraph",
		Long: `List the roots of a subgraph with the kind of element each resolves to.

Exit codes:
  0 - Every root resolved
  1 - A root has no vertex
  2 - Command error (unreadable file, etc.)

Examples:
  blockwire subgraph roots ./response.json
  blockwire subgraph roots ./response.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sg, err := subgraph.LoadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load subgraph", err)
			}
			roots, err := SubgraphRoots(sg)
			if err != nil {
				return WrapExitError(ExitFailure, "inconsistent subgraph", err)
			}
			return rootOpts.formatter(cmd).Render(roots, func(w io.Writer) {
				for _, r := range roots {
					fmt.Fprintf(w, "%-13s %s@%s\n", r.Kind, r.BaseID, r.RevisionID)
				}
			})
		},
	}
}

// LinkInfo is a link of an entity and the entities on its other end.
type LinkInfo struct {
	Link     string   `json:"link"`
	Entities []string `json:"entities"`
}

// SubgraphLinksOptions holds flags for the subgraph links command.
type SubgraphLinksOptions struct {
	*RootOptions
	Incoming bool
	Interval string
}

// EntityLinks returns the outgoing links of id with their right entities,
// or with incoming the incoming links with their left entities. interval
// limits a temporal subgraph and may be nil.
func EntityLinks(sg *subgraph.Subgraph, id subgraph.EntityID, incoming bool, interval *temporal.Interval) ([]LinkInfo, error) {
	var out []LinkInfo
	if !incoming {
		pairs, err := subgraph.GetOutgoingLinkAndTargetEntities(sg, id, interval)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			for _, link := range entityIDs(p.LinkEntity) {
				out = mergeLink(out, link, entityIDs(p.RightEntity))
			}
		}
		return out, nil
	}

	links, err := subgraph.GetIncomingLinksForEntity(sg, id, interval)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		left, err := subgraph.GetLeftEntityForLinkEntity(sg, link.ID(), interval)
		if err != nil {
			return nil, err
		}
		out = mergeLink(out, string(link.ID()), entityIDs(left))
	}
	return out, nil
}

// mergeLink adds ids to the entry for link, keeping entries in first-seen
// order and ids unique.
func mergeLink(links []LinkInfo, link string, ids []string) []LinkInfo {
	i := slices.IndexFunc(links, func(l LinkInfo) bool { return l.Link == link })
	if i < 0 {
		return append(links, LinkInfo{Link: link, Entities: ids})
	}
	for _, id := range ids {
		if !slices.Contains(links[i].Entities, id) {
			links[i].Entities = append(links[i].Entities, id)
		}
	}
	return links
}

func entityIDs(entities []*subgraph.Entity) []string {
	var out []string
	for _, e := range entities {
		if id := string(e.ID()); !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func newSubgraphLinksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubgraphLinksOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "links <subgraph-file> <entity-id>",
		Short: "List the links of an entity",
		Long: `List the links of an entity in a subgraph together with the entities
on the other end of each link.

Temporal subgraphs are searched at the latest instant of their variable axis
unless --interval is given.

Examples:
  blockwire subgraph links ./response.json alice
  blockwire subgraph links ./response.json bob --incoming
  blockwire subgraph links ./temporal.json alice --interval "[2024-01-01T00:00:00Z, +inf)"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sg, err := subgraph.LoadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load subgraph", err)
			}
			var interval *temporal.Interval
			if opts.Interval != "" {
				i, err := ParseInterval(opts.Interval)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid interval", err)
				}
				interval = &i
			}

			links, err := EntityLinks(sg, subgraph.EntityID(args[1]), opts.Incoming, interval)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to resolve links", err)
			}
			if links == nil {
				links = []LinkInfo{}
			}
			return opts.formatter(cmd).Render(links, func(w io.Writer) {
				if len(links) == 0 {
					fmt.Fprintln(w, "No links found.")
					return
				}
				arrow := "->"
				if opts.Incoming {
					arrow = "<-"
				}
				for _, l := range links {
					fmt.Fprintf(w, "%s %s %s\n", l.Link, arrow, strings.Join(l.Entities, ", "))
				}
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Incoming, "incoming", false, "list incoming links and their left entities")
	cmd.Flags().StringVar(&opts.Interval, "interval", "", "search interval for temporal subgraphs")

	return cmd
}
