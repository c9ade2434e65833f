// Package kvmcli wires the server and client roles into a cobra command
// tree.
package kvmcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kvmlink/kvmlink/internal/capturesvc/evdev"
	"github.com/kvmlink/kvmlink/pkg/kvm"
	"github.com/spf13/cobra"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "kvmlink"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

func NewRootCmd(configDir string) *cobra.Command {
	cfg := kvm.Config{
		DataDir:      filepath.Join(configDir, "data"),
		ServerConfig: filepath.Join(configDir, "server.yml"),
		ClientConfig: filepath.Join(configDir, "client.yml"),
	}
	rootCmd := &cobra.Command{
		Use:   "kvmlink",
		Short: "Software KVM switch",
		Long:  `kvmlink shares one machine's keyboard, mouse and clipboard with other machines over the network.`,
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.ServerConfig, "server-config", cfg.ServerConfig, "server config file")
	rootCmd.PersistentFlags().StringVar(&cfg.ClientConfig, "client-config", cfg.ClientConfig, "client config file")
	rootCmd.AddCommand(NewServer(&cfg))
	rootCmd.AddCommand(NewClient(&cfg))
	rootCmd.AddCommand(NewListDevices())
	return rootCmd
}

func NewServer(cfg *kvm.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the capturing side",
		Long:  `Grab the local input devices and broadcast their events to connected clients.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := kvm.NewServer(*cfg)
			if err != nil {
				return err
			}
			defer server.Close()
			return server.Run(cmd.Context())
		},
	}
}

func NewClient(cfg *kvm.Config) *cobra.Command {
	var tray bool
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run the replaying side",
		Long:  `Connect to a kvmlink server and replay the received input locally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := kvm.NewClient(*cfg)
			if err != nil {
				return err
			}
			if tray {
				return runWithTray(cmd.Context(), client)
			}
			return client.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&tray, "tray", false, "show a system tray icon with a quit action")
	return cmd
}

func NewListDevices() *cobra.Command {
	return &cobra.Command{
		Use:   "list-devices",
		Short: "List capturable input devices",
		Long:  `List the keyboards and mice the server would grab.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := evdev.ListDevices()
			if err != nil {
				return err
			}
			jsonB, err := json.MarshalIndent(devices, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
			return nil
		},
	}
}
