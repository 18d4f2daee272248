package main

import (
	"context"
	"fmt"
	"net"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/backkem/hap/pkg/discovery"
)

func newDiscoverCommand(a *app) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse the local network for devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := discovery.ParseServiceType(service)
			if err != nil {
				return err
			}
			r, err := a.resolver()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			services, err := r.Browse(ctx, st)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INSTANCE\tIDENTIFIER\tADDRESS")
			for svc := range services {
				addr, _ := svc.Address()
				fmt.Fprintf(w, "%s\t%s\t%s\n", svc.Instance, svc.Identifier, addr)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&service, "service", "airplay", "service: airplay, companion or raop")
	return cmd
}

func (a *app) resolver() (*discovery.Resolver, error) {
	return discovery.NewResolver(discovery.ResolverConfig{
		BrowseTimeout: a.opts.BrowseTimeout,
		LoggerFactory: a.loggerFactory,
	})
}

// resolveTarget returns target when it is host:port; otherwise it browses
// for a device whose identifier or instance name is target.
func (a *app) resolveTarget(ctx context.Context, st discovery.ServiceType, target string) (string, error) {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target, nil
	}
	r, err := a.resolver()
	if err != nil {
		return "", err
	}
	svc, err := r.Find(ctx, st, strings.TrimSpace(target))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", target, err)
	}
	a.log.Infof("resolved %q to %s", target, svc.Instance)
	return svc.Address()
}
