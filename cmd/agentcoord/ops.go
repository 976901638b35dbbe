package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BaSui01/agentcoord/internal/tlsutil"
	"github.com/BaSui01/agentcoord/types"
)

// =============================================================================
// ⚖️ rebalance / workload 命令
// =============================================================================

func newRebalanceCmd(opts *rootOptions) *cobra.Command {
	var projectID, initiatedBy, reason, userID string

	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Run one workload rebalance pass and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, userID, func(ctx context.Context, a *app) error {
				result, err := a.orchestrator.ForContext(ctx).RebalanceWorkload(ctx, projectID, initiatedBy, reason)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project to rebalance")
	cmd.Flags().StringVar(&initiatedBy, "initiated-by", "operator", "Who initiated the rebalance")
	cmd.Flags().StringVar(&reason, "reason", "Manual workload rebalancing", "Reason recorded on the handoffs")
	cmd.Flags().StringVar(&userID, "user", "", "Only see records owned by this user")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newWorkloadCmd(opts *rootOptions) *cobra.Command {
	var agentID, userID string

	cmd := &cobra.Command{
		Use:   "workload",
		Short: "Print an agent's workload as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, userID, func(ctx context.Context, a *app) error {
				workload, err := a.orchestrator.ForContext(ctx).GetAgentWorkload(ctx, agentID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), workload)
			})
		},
	}
	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "Agent ID")
	cmd.Flags().StringVar(&userID, "user", "", "Only see records owned by this user")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

// withApp 加载配置并装配一次性运行时，不记录 Prometheus 指标。
// userID 非空时写入 ctx，由 ForContext 限定可见记录。
func withApp(cmd *cobra.Command, opts *rootOptions, userID string, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if userID != "" {
		ctx = types.WithUserID(ctx, userID)
	}
	a, err := buildApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// 🏥 health 命令
// =============================================================================

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a running agentcoord /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return checkHealth(cmd.Context(), cmd.OutOrStdout(), addr, timeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:9091", "Server address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}

func checkHealth(ctx context.Context, out io.Writer, addr string, timeout time.Duration) error {
	client := tlsutil.SecureHTTPClient(timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(addr, "/")+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("health check failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	fmt.Fprintln(out, "OK")
	return nil
}
