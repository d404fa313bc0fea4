package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-l2server/cipher"
	"github.com/cyberinferno/go-l2server/gameclient"
	"github.com/cyberinferno/go-l2server/packet/clientpacket"
)

func pingCmd() *cobra.Command {
	var (
		revision int32
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping <host:port>",
		Short: "Connect to a game server and perform the handshake",
		Long: `Connect to a game server, announce the protocol revision and print
the negotiated cipher key.

Examples:
  l2gameserver ping 127.0.0.1:7777
  l2gameserver ping 127.0.0.1:7777 --revision=216`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cfg := gameclient.DefaultConfig(args[0])
			cfg.Revision = revision
			key, err := pingServer(ctx, cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "handshake ok, key %s\n", hex.EncodeToString(key[:]))
			return nil
		},
	}

	cmd.Flags().Int32Var(&revision, "revision", clientpacket.DefaultRevision, "Protocol revision to announce")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Handshake timeout")

	return cmd
}

func pingServer(ctx context.Context, cfg gameclient.Config) ([cipher.KeySize]byte, error) {
	client := gameclient.New(cfg, nil)
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return [cipher.KeySize]byte{}, fmt.Errorf("connect %s: %w", cfg.Address, err)
	}

	key, err := client.WaitReady(ctx)
	if err != nil {
		return key, fmt.Errorf("handshake with %s: %w", cfg.Address, err)
	}

	return key, nil
}
