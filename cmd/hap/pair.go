package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backkem/hap/pkg/airplay"
	"github.com/backkem/hap/pkg/companion"
	"github.com/backkem/hap/pkg/discovery"
	"github.com/backkem/hap/pkg/securechannel/hap"
)

// Protocols.
const (
	protocolAirPlay   = "airplay"
	protocolCompanion = "companion"
)

func serviceFor(protocol string) (discovery.ServiceType, error) {
	switch protocol {
	case protocolAirPlay:
		return discovery.ServiceTypeAirPlay, nil
	case protocolCompanion:
		return discovery.ServiceTypeCompanion, nil
	}
	return discovery.ServiceTypeUnknown, fmt.Errorf("unknown protocol %q", protocol)
}

// signalContext is cancelled on SIGINT or SIGTERM.
var signalContext = func(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newPairCommand(a *app) *cobra.Command {
	var (
		protocol  string
		pin       string
		transient bool
	)
	cmd := &cobra.Command{
		Use:   "pair <target>",
		Short: "Run pair-setup and store the credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := serviceFor(protocol)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			addr, err := a.resolveTarget(ctx, st, args[0])
			if err != nil {
				return err
			}
			store, closer, err := openStore(a.opts.Store, a.opts.StorePath)
			if err != nil {
				return err
			}
			defer closer.Close()

			prompt := pinPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			var creds *hap.Credentials
			switch protocol {
			case protocolAirPlay:
				creds, err = a.pairAirPlay(ctx, addr, store, airplay.PairOptions{PIN: pin, PromptPIN: prompt, Transient: transient})
			case protocolCompanion:
				creds, err = a.pairCompanion(ctx, addr, store, companion.PairOptions{PIN: pin, PromptPIN: prompt, Transient: transient})
			}
			if err != nil {
				return err
			}
			if creds == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "transient pairing complete")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paired with %s, credentials stored in %s\n", creds.AccessoryIdentifier, a.opts.StorePath)
			return nil
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", protocolAirPlay, "protocol: airplay or companion")
	cmd.Flags().StringVar(&pin, "pin", "", "PIN shown on the device (prompted when empty)")
	cmd.Flags().BoolVar(&transient, "transient", false, "transient pairing with the fixed PIN")
	return cmd
}

func newVerifyCommand(a *app) *cobra.Command {
	var (
		protocol string
		id       string
	)
	cmd := &cobra.Command{
		Use:   "verify <target>",
		Short: "Run pair-verify with stored credentials and open an encrypted session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := serviceFor(protocol)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			store, closer, err := openStore(a.opts.Store, a.opts.StorePath)
			if err != nil {
				return err
			}
			defer closer.Close()
			creds, err := selectCredentials(store, id)
			if err != nil {
				return err
			}
			addr, err := a.resolveTarget(ctx, st, args[0])
			if err != nil {
				return err
			}

			switch protocol {
			case protocolAirPlay:
				err = a.verifyAirPlay(ctx, addr, creds)
			case protocolCompanion:
				err = a.verifyCompanion(ctx, addr, creds)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified %s, session encrypted\n", creds.AccessoryIdentifier)
			return nil
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", protocolAirPlay, "protocol: airplay or companion")
	cmd.Flags().StringVar(&id, "id", "", "accessory identifier of the stored credentials")
	return cmd
}

func (a *app) pairAirPlay(ctx context.Context, addr string, store hap.CredentialStore, opts airplay.PairOptions) (*hap.Credentials, error) {
	id, err := hap.NewIdentity("", a.opts.Name)
	if err != nil {
		return nil, err
	}
	client, err := airplay.Dial(ctx, addr, airplay.Config{
		Identity:       id,
		Store:          store,
		RequestTimeout: a.opts.Timeout,
		LoggerFactory:  a.loggerFactory,
	})
	if err != nil {
		return nil, err
	}
	defer client.Close()

	res, err := client.Pair(ctx, opts)
	if err != nil {
		return nil, err
	}
	if res.Keys != nil {
		res.Keys.Zero()
	}
	return res.Credentials, nil
}

func (a *app) pairCompanion(ctx context.Context, addr string, store hap.CredentialStore, opts companion.PairOptions) (*hap.Credentials, error) {
	id, err := hap.NewIdentity(companion.PairingID(a.opts.MAC), a.opts.Name)
	if err != nil {
		return nil, err
	}
	client, err := companion.Dial(ctx, addr, companion.Config{
		Identity:       id,
		Store:          store,
		RequestTimeout: a.opts.Timeout,
		LoggerFactory:  a.loggerFactory,
	})
	if err != nil {
		return nil, err
	}
	defer client.Close()

	res, err := client.Pair(ctx, opts)
	if err != nil {
		return nil, err
	}
	if res.Keys != nil {
		res.Keys.Zero()
	}
	return res.Credentials, nil
}

func (a *app) verifyAirPlay(ctx context.Context, addr string, creds *hap.Credentials) error {
	client, err := airplay.Dial(ctx, addr, airplay.Config{
		RequestTimeout: a.opts.Timeout,
		LoggerFactory:  a.loggerFactory,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	res, err := client.Verify(ctx, creds)
	if err != nil {
		return err
	}
	defer res.Zero()
	if err := client.Secure(res.Keys); err != nil {
		return err
	}
	info, err := client.Info(ctx)
	if err != nil {
		return err
	}
	a.log.Infof("GET /info over encrypted session: %d bytes", len(info))
	return nil
}

func (a *app) verifyCompanion(ctx context.Context, addr string, creds *hap.Credentials) error {
	client, err := companion.Dial(ctx, addr, companion.Config{
		RequestTimeout: a.opts.Timeout,
		LoggerFactory:  a.loggerFactory,
		OnEvent: func(ev companion.Event) {
			a.log.Debugf("event %s", ev.Identifier)
		},
	})
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Verify(ctx, creds)
}
