package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/auth"
	"github.com/angelmondragon/orderrecon/pkg/config"
)

const (
	cmdCatchup = "catchup"
	cmdRun     = "run"
	cmdInvoice = "invoice"
	cmdToken   = "token"
)

type runTrigger interface {
	Run(ctx context.Context, window time.Duration, opts ...reconcile.RunOption) (reconcile.RunSummary, error)
}

type invoiceReconciler interface {
	ReconcileInvoice(ctx context.Context, orderID uuid.UUID, incrementID, token string) reconcile.Result
}

type options struct {
	Cmd         string
	Window      time.Duration
	Label       string
	OrderID     string
	IncrementID string
	Token       string
	Subject     string
}

func (o options) needsGraph() bool {
	return o.Cmd != cmdToken
}

type runOutput struct {
	RunID      uuid.UUID `json:"run_id"`
	Label      string    `json:"label"`
	Window     string    `json:"window"`
	Since      time.Time `json:"since"`
	Candidates int       `json:"candidates"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Failures   []string  `json:"failures,omitempty"`
}

type invoiceOutput struct {
	Success       bool   `json:"success"`
	Reason        string `json:"reason,omitempty"`
	State         string `json:"state"`
	Message       string `json:"message,omitempty"`
	RemoteOrderID string `json:"remote_order_id,omitempty"`
}

// runReconcile runs one pass. catchup uses the configured catch-up window.
func runReconcile(ctx context.Context, out io.Writer, runner runTrigger, cfg config.ReconcileConfig, opts options) error {
	window := opts.Window
	label := opts.Label
	if opts.Cmd == cmdCatchup {
		if window <= 0 {
			window = cfg.CatchupWindow
		}
		if label == "" {
			label = "catchup-manual"
		}
	}
	if window <= 0 {
		window = cfg.FrequentWindow
	}
	if label == "" {
		label = "cli"
	}

	summary, err := runner.Run(ctx, window, reconcile.WithLabel(label))
	if err != nil {
		return fmt.Errorf("reconcile run: %w", err)
	}

	result := runOutput{
		RunID:      summary.RunID,
		Label:      summary.Label,
		Window:     summary.Window.String(),
		Since:      summary.Since,
		Candidates: summary.Candidates,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
	}
	for _, store := range summary.Report.Stores {
		for _, r := range store.Results {
			if !r.Success {
				result.Failures = append(result.Failures, fmt.Sprintf("%s cart=%s reason=%s", store.StoreID, r.CartID, r.Reason))
			}
		}
	}
	return writeJSON(out, result)
}

// runInvoice invoices a single order; a failed result is reported as an error.
func runInvoice(ctx context.Context, out io.Writer, reconciler invoiceReconciler, opts options) error {
	orderID, err := uuid.Parse(strings.TrimSpace(opts.OrderID))
	if err != nil {
		return fmt.Errorf("invalid -order-id: %w", err)
	}
	incrementID := strings.TrimSpace(opts.IncrementID)
	if incrementID == "" {
		return fmt.Errorf("missing -increment-id")
	}
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return fmt.Errorf("missing -token")
	}

	result := reconciler.ReconcileInvoice(ctx, orderID, incrementID, token)
	if err := writeJSON(out, invoiceOutput{
		Success:       result.Success,
		Reason:        string(result.Reason),
		State:         string(result.State),
		Message:       result.Message,
		RemoteOrderID: result.RemoteOrderID,
	}); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("invoice not reconciled: %s", result.Reason)
	}
	return nil
}

// mintToken prints an admin bearer token for the reconcile endpoints.
func mintToken(out io.Writer, cfg config.AdminAuthConfig, subject string, now time.Time) error {
	token, err := auth.MintAdminToken(cfg, now, auth.AdminTokenPayload{
		Subject: subject,
		Scopes:  []string{auth.ScopeReconcile},
	})
	if err != nil {
		return fmt.Errorf("mint admin token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
