// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetpass/fleetpass/internal/config"
	"github.com/fleetpass/fleetpass/internal/store"
)

// statusTimeout bounds each individual probe.
const statusTimeout = 2 * time.Second

// ComponentStatus holds the probe result for one component.
type ComponentStatus struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand with all flags configured.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running FleetPass service",
		Long: `Probe the health endpoints of a running FleetPass service and report
database connectivity and the current migration version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, statusCfg *statusConfig) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	statuses := []ComponentStatus{
		queryServiceStatus(cfg.ObservabilityAddr),
		queryDatabaseStatus(cmd.Context(), cfg.DatabaseURL),
	}

	var output string
	if statusCfg.jsonOutput {
		output, err = formatStatusJSON(statuses)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
	} else {
		output = formatStatusTable(statuses)
	}

	cmd.Println(output)
	return nil
}

// queryServiceStatus probes the observability endpoints of a running service.
func queryServiceStatus(addr string) ComponentStatus {
	status := ComponentStatus{Component: "service"}

	client := &http.Client{Timeout: statusTimeout}
	resp, err := client.Get("http://" + addr + "/healthz/liveness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("liveness returned %d", resp.StatusCode)
		return status
	}

	resp, err = client.Get("http://" + addr + "/healthz/readiness")
	if err != nil {
		// Alive but readiness unreachable; report what we know.
		status.Healthy = true
		status.Detail = "alive"
		return status
	}
	_ = resp.Body.Close()

	status.Healthy = true
	if resp.StatusCode == http.StatusOK {
		status.Detail = "ready"
	} else {
		status.Detail = "alive, not ready"
	}
	return status
}

// queryDatabaseStatus pings the database and reads the migration version.
func queryDatabaseStatus(ctx context.Context, databaseURL string) ComponentStatus {
	status := ComponentStatus{Component: "database"}

	if databaseURL == "" {
		status.Error = "no database URL configured"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	pool, err := store.Connect(pingCtx, databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer pool.Close()
	status.Healthy = true

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		status.Detail = "connected, migration version unknown"
		return status
	}
	defer func() { _ = migrator.Close() }()

	version, dirty, err := migrator.Version()
	if err != nil {
		status.Detail = "connected, migration version unknown"
		return status
	}
	if dirty {
		status.Detail = fmt.Sprintf("connected, migration version %d (dirty)", version)
	} else {
		status.Detail = fmt.Sprintf("connected, migration version %d", version)
	}
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(statuses []ComponentStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "COMPONENT\tSTATUS\tDETAIL")
	_, _ = fmt.Fprintln(w, "---------\t------\t------")

	for _, status := range statuses {
		if status.Healthy {
			_, _ = fmt.Fprintf(w, "%s\thealthy\t%s\n", status.Component, status.Detail)
		} else {
			reason := "unreachable"
			if status.Error != "" {
				reason = status.Error
			}
			_, _ = fmt.Fprintf(w, "%s\tdown\t%s\n", status.Component, reason)
		}
	}

	_ = w.Flush()
	return string(buf)
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(statuses []ComponentStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
