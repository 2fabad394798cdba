package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

func newStatusCmd(cfg *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server info and connection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

// statusInfo is the JSON output of the status command.
type statusInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	TLS      bool   `json:"tls"`
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Proxy    bool   `json:"proxy"`
	Status   string `json:"status"`
}

func runStatus(ctx context.Context, cfg *rootConfig, w io.Writer) error {
	ctx, cancel := cfg.withTimeout(ctx)
	defer cancel()

	exec, cleanup, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := exec.ServerInfo(ctx)
	if err != nil {
		return err
	}

	si := statusInfo{
		Host:     cfg.conf.Host,
		Port:     cfg.conf.Port,
		User:     cfg.conf.User,
		TLS:      cfg.conf.TLS || cfg.conf.TLSCA != "",
		ServerID: info.ID,
		Name:     info.Name,
		Proxy:    info.Proxy,
		Status:   "ok",
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(si)
}
