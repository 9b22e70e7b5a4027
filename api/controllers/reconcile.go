package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderrecon/api/middleware"
	"github.com/angelmondragon/orderrecon/api/responses"
	"github.com/angelmondragon/orderrecon/api/validators"
	"github.com/angelmondragon/orderrecon/internal/reconcile"
	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
	"github.com/angelmondragon/orderrecon/pkg/logger"
)

// AdminRunLabel tags runs triggered through the admin API.
const AdminRunLabel = "admin"

// maxAdminWindow keeps ad-hoc runs from scanning an unbounded history.
const maxAdminWindow = 31 * 24 * time.Hour

type runTrigger interface {
	Run(ctx context.Context, window time.Duration, opts ...reconcile.RunOption) (reconcile.RunSummary, error)
}

type invoiceReconciler interface {
	ReconcileInvoice(ctx context.Context, orderID uuid.UUID, incrementID, token string) reconcile.Result
}

type lastRunReader interface {
	LastRun(ctx context.Context, label string) (*reconcile.LastRun, error)
}

type runRequest struct {
	Window string `json:"window" validate:"required"`
}

type runResponse struct {
	RunID       uuid.UUID `json:"run_id"`
	Label       string    `json:"label"`
	Window      string    `json:"window"`
	Since       time.Time `json:"since"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Candidates  int       `json:"candidates"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Stores      int       `json:"stores"`
	TriggeredBy string    `json:"triggered_by,omitempty"`
}

type invoiceRequest struct {
	OrderID     string `json:"order_id" validate:"required,uuid"`
	IncrementID string `json:"increment_id" validate:"required"`
	Token       string `json:"token" validate:"required"`
}

type resultResponse struct {
	Success       bool      `json:"success"`
	Reason        string    `json:"reason,omitempty"`
	State         string    `json:"state"`
	Message       string    `json:"message,omitempty"`
	StoreID       uuid.UUID `json:"store_id"`
	OrderID       uuid.UUID `json:"order_id"`
	RemoteOrderID string    `json:"remote_order_id,omitempty"`
}

// AdminReconcileRun runs one scan-and-reconcile pass over the requested window.
func AdminReconcileRun(runner runTrigger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile runner unavailable"))
			return
		}

		var req runRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		window, err := time.ParseDuration(strings.TrimSpace(req.Window))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid window").
				WithDetails(map[string]string{"window": "must be a duration such as 60m or 168h"}))
			return
		}
		if window <= 0 || window > maxAdminWindow {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "window must be between 0 and %s", maxAdminWindow).
				WithDetails(map[string]string{"window": "out of range"}))
			return
		}

		summary, err := runner.Run(r.Context(), window, reconcile.WithLabel(AdminRunLabel))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile run failed").
				WithDetails(map[string]any{"run_id": summary.RunID.String(), "processed": summary.Succeeded + summary.Failed}))
			return
		}

		resp := runResponse{
			RunID:       summary.RunID,
			Label:       summary.Label,
			Window:      summary.Window.String(),
			Since:       summary.Since,
			StartedAt:   summary.StartedAt,
			FinishedAt:  summary.FinishedAt,
			Candidates:  summary.Candidates,
			Succeeded:   summary.Succeeded,
			Failed:      summary.Failed,
			Stores:      len(summary.Report.Stores),
			TriggeredBy: middleware.AdminSubjectFromContext(r.Context()),
		}
		responses.WriteSuccess(w, resp)
	}
}

// AdminReconcileInvoice invoices a single order that was charged remotely.
func AdminReconcileInvoice(reconciler invoiceReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reconciler == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice reconciler unavailable"))
			return
		}

		var req invoiceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		result := reconciler.ReconcileInvoice(r.Context(), orderID, strings.TrimSpace(req.IncrementID), strings.TrimSpace(req.Token))
		resp := resultResponse{
			Success:       result.Success,
			Reason:        string(result.Reason),
			State:         string(result.State),
			Message:       result.Message,
			StoreID:       result.StoreID,
			OrderID:       result.OrderID,
			RemoteOrderID: result.RemoteOrderID,
		}
		if result.Success {
			responses.WriteSuccess(w, resp)
			return
		}
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(invoiceFailureCode(result.Reason), "invoice reconciliation failed").WithDetails(resp))
	}
}

func invoiceFailureCode(reason reconcile.Reason) pkgerrors.Code {
	switch reason {
	case reconcile.ReasonAlreadyInvoiced:
		return pkgerrors.CodeConflict
	case reconcile.ReasonRemoteOrderDetailUnavailable:
		return pkgerrors.CodeDependency
	case reconcile.ReasonPanic:
		return pkgerrors.CodeInternal
	default:
		return pkgerrors.CodeStateConflict
	}
}

// AdminLastRun returns the stored summary of the latest run for a label.
func AdminLastRun(store lastRunReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "run store unavailable"))
			return
		}

		label := strings.TrimSpace(chi.URLParam(r, "label"))
		if label == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "run label is required"))
			return
		}

		run, err := store.LastRun(r.Context(), label)
		if err != nil {
			if errors.Is(err, reconcile.ErrNoRun) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no run recorded for label"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load last run"))
			return
		}
		responses.WriteSuccess(w, run)
	}
}
