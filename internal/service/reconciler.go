package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	SessionIDParam = "session_id"

	msgNoSession          = "no session found"
	msgVerificationFailed = "payment verification failed"
	msgVerifyError        = "failed to verify payment status"
	defaultOrderWarning   = "Your payment was successful, but there was an issue processing your order. Our team has been notified."
)

// TransitionFunc observes every status change of a reconciliation.
type TransitionFunc func(ctx context.Context, sessionID string, from, to domain.ReconcileStatus)

// Reconciler turns a payment return into a final outcome. It asks the backend
// once, clears the cart only when the payment is verified and never retries.
type Reconciler struct {
	cart         *CartStore
	auth         *AuthGate
	backend      CheckoutBackend
	log          *logger.Logger
	metrics      *metrics.Metrics
	onTransition TransitionFunc
	sfg          singleflight.Group // one verification per session id
}

func NewReconciler(cart *CartStore, auth *AuthGate, b CheckoutBackend, log *logger.Logger, m *metrics.Metrics) (*Reconciler, error) {
	if cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if b == nil {
		return nil, fmt.Errorf("checkout backend required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{
		cart:    cart,
		auth:    auth,
		backend: b,
		log:     log,
		metrics: m,
	}, nil
}

func (r *Reconciler) OnTransition(fn TransitionFunc) {
	r.onTransition = fn
}

// ReconcileURL reads the session id from the return url's query string.
func (r *Reconciler) ReconcileURL(ctx context.Context, returnURL string) domain.ReconcileOutcome {
	var sessionID string
	if u, err := url.Parse(returnURL); err == nil {
		sessionID = u.Query().Get(SessionIDParam)
	}
	return r.Reconcile(ctx, sessionID)
}

func (r *Reconciler) Reconcile(ctx context.Context, sessionID string) domain.ReconcileOutcome {
	sessionID = strings.TrimSpace(sessionID)
	run := &reconcileRun{r: r, sessionID: sessionID, status: domain.ReconcileStatusPending}

	if sessionID == "" {
		return r.record(r.failure(ctx, run, msgNoSession))
	}
	ctx = r.log.WithSessionID(ctx, sessionID)

	ch := r.sfg.DoChan(sessionID, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return r.verify(callCtx, run), nil
	})

	select {
	case <-ctx.Done():
		// the shared verification keeps running and still clears the cart
		return r.record(domain.ReconcileOutcome{
			Status:    domain.ReconcileStatusFailed,
			SessionID: sessionID,
			Message:   msgVerifyError,
			Actions:   []domain.NavAction{domain.ActionReturnToCart, domain.ActionGoHome},
		})
	case res := <-ch:
		return r.record(res.Val.(domain.ReconcileOutcome))
	}
}

func (r *Reconciler) verify(ctx context.Context, run *reconcileRun) domain.ReconcileOutcome {
	run.advance(ctx, domain.ReconcileStatusVerifying)

	result, err := r.backend.VerifyPayment(ctx, r.token(), run.sessionID)
	if err != nil {
		if backend.IsUnauthorized(err) && r.auth != nil {
			r.auth.Invalidate(ctx)
		}
		r.log.WarnErr(ctx, "verify payment failed", err)
		message := backend.MessageOf(err)
		if message == "" {
			message = msgVerifyError
		}
		return r.failure(ctx, run, message)
	}

	if !result.Verified {
		r.log.Info(ctx, "payment not verified")
		return r.failure(ctx, run, msgVerificationFailed)
	}

	run.advance(ctx, domain.ReconcileStatusVerified)
	r.cart.Clear(ctx)

	outcome := domain.ReconcileOutcome{
		Status:    domain.ReconcileStatusVerified,
		SessionID: run.sessionID,
		Orders:    result.Orders,
		Actions:   []domain.NavAction{domain.ActionContinueShopping, domain.ActionViewOrders},
	}
	if result.OrderError {
		outcome.Warning = result.Message
		if outcome.Warning == "" {
			outcome.Warning = defaultOrderWarning
		}
		r.log.Warn(ctx, "payment verified but order processing reported an error")
	} else {
		r.log.Info(ctx, "payment verified, cart cleared")
	}
	return outcome
}

func (r *Reconciler) failure(ctx context.Context, run *reconcileRun, message string) domain.ReconcileOutcome {
	run.advance(ctx, domain.ReconcileStatusFailed)
	return domain.ReconcileOutcome{
		Status:    domain.ReconcileStatusFailed,
		SessionID: run.sessionID,
		Message:   message,
		Actions:   []domain.NavAction{domain.ActionReturnToCart, domain.ActionGoHome},
	}
}

func (r *Reconciler) record(outcome domain.ReconcileOutcome) domain.ReconcileOutcome {
	r.metrics.IncReconciliation(outcome.Status.String(), outcome.Warning != "")
	return outcome
}

func (r *Reconciler) token() string {
	if r.auth == nil {
		return ""
	}
	return r.auth.Token()
}

// reconcileRun tracks the status of one reconciliation attempt.
type reconcileRun struct {
	r         *Reconciler
	sessionID string
	status    domain.ReconcileStatus
}

func (run *reconcileRun) advance(ctx context.Context, to domain.ReconcileStatus) {
	from := run.status
	if !from.CanTransitionTo(to) {
		run.r.log.Error(ctx, fmt.Sprintf("reconcile %s -> %s", from, to), IllegalTransitionError)
		return
	}
	run.status = to
	if run.r.onTransition != nil {
		run.r.onTransition(ctx, run.sessionID, from, to)
	}
}
