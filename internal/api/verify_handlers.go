package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tjhsst/ion-verifier/internal/constants"
	"tjhsst/ion-verifier/internal/logging"
	"tjhsst/ion-verifier/internal/metrics"
	"tjhsst/ion-verifier/internal/middleware"
	"tjhsst/ion-verifier/internal/verification"
)

// IdentityProvider is the OAuth2 surface the controller drives: redirect
// URL construction, code exchange, and profile fetch.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (string, error)
}

// RoleMutator applies the role diff for a verified identity.
type RoleMutator interface {
	Apply(ctx context.Context, discordUserID, guildID, username string) error
}

// VerifyHandlers implements the verification flow's HTTP surface.
type VerifyHandlers struct {
	store    verification.PendingStore
	provider IdentityProvider
	mutator  RoleMutator
	metrics  *metrics.MetricsRegistry
}

// NewVerifyHandlers wires the controller's collaborators. metricsReg may be
// nil (tests).
func NewVerifyHandlers(
	store verification.PendingStore,
	provider IdentityProvider,
	mutator RoleMutator,
	metricsReg *metrics.MetricsRegistry,
) *VerifyHandlers {
	return &VerifyHandlers{
		store:    store,
		provider: provider,
		mutator:  mutator,
		metrics:  metricsReg,
	}
}

// Index handles GET /
//
// Static liveness text so load balancers and curious users get a 200.
func (h *VerifyHandlers) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Discord ION Verifier Bot Web Interface. Waiting for verification requests.")
}

// StartVerify handles GET /start-verify?user_id=<int>&guild_id=<int>
//
// Creates a pending verification keyed by a one-time token and redirects
// the browser to the ION authorization endpoint with that token as the
// OAuth state parameter.
func (h *VerifyHandlers) StartVerify(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	guildID := r.URL.Query().Get("guild_id")

	if !isSnowflake(userID) || !isSnowflake(guildID) {
		h.renderError(w, http.StatusBadRequest, constants.ErrCodeBadRequest)
		return
	}

	token, err := h.store.Create(r.Context(), userID, guildID)
	if err != nil {
		logging.Error("Failed to create pending verification",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err.Error(),
		)
		h.renderError(w, http.StatusInternalServerError, constants.ErrCodeNetworkError)
		return
	}

	if h.metrics != nil {
		h.metrics.VerificationsStartedTotal.Inc()
	}

	logging.Info("Starting verification",
		"request_id", middleware.RequestIDFromContext(r.Context()),
		"discord_user_id", userID,
		"guild_id", guildID,
	)

	http.Redirect(w, r, h.provider.AuthCodeURL(token), http.StatusFound)
}

// Callback handles GET /callback?code=<str>&state=<str>
//
// Consumes the correlation token (pop, not peek), exchanges the
// authorization code, fetches the verified identity, and applies the role
// diff. Role mutation failures are logged but never downgrade the response:
// identity proof is the user-facing contract, role assignment is a
// best-effort side effect.
func (h *VerifyHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	requestID := middleware.RequestIDFromContext(ctx)

	pending, err := h.consumeState(ctx, state)
	if err != nil {
		logging.Warn("Callback with invalid or replayed state",
			"request_id", requestID,
			"code", constants.ErrCodeInvalidState,
		)
		h.renderError(w, http.StatusBadRequest, constants.ErrCodeInvalidState)
		return
	}

	log := logging.WithVerification(requestID, pending.DiscordUserID, pending.GuildID)

	if code == "" {
		log.Warnw("User denied ION consent", "code", constants.ErrCodeAuthorizationDenied)
		h.renderError(w, http.StatusBadRequest, constants.ErrCodeAuthorizationDenied)
		return
	}

	exchangeStart := time.Now()
	accessToken, err := h.provider.ExchangeCode(ctx, code)
	if err != nil {
		log.Errorw("Token exchange failed",
			"code", constants.ErrCodeTokenExchangeFailed,
			"error", err.Error(),
		)
		h.renderError(w, http.StatusInternalServerError, constants.ErrCodeTokenExchangeFailed)
		return
	}
	if h.metrics != nil {
		h.metrics.TokenExchangeDuration.Observe(time.Since(exchangeStart).Seconds())
	}

	username, err := h.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		log.Errorw("Profile fetch failed",
			"code", constants.ErrCodeProfileIncomplete,
			"error", err.Error(),
		)
		h.renderError(w, http.StatusInternalServerError, constants.ErrCodeProfileIncomplete)
		return
	}

	log.Infow("Identity verified", "ion_username", username)

	if err := h.mutator.Apply(ctx, pending.DiscordUserID, pending.GuildID, username); err != nil {
		log.Errorw("Role mutation failed", "error", err.Error())
		if h.metrics != nil {
			h.metrics.RoleMutationsTotal.WithLabelValues("failure").Inc()
		}
	} else if h.metrics != nil {
		h.metrics.RoleMutationsTotal.WithLabelValues("success").Inc()
	}

	if h.metrics != nil {
		h.metrics.VerificationOutcomesTotal.WithLabelValues("success").Inc()
	}

	h.renderSuccess(w, fmt.Sprintf("You have been verified as %s. Roles are being updated.", username))
}

// consumeState pops the pending verification for the state token. A
// missing state or an unknown token are the same failure from the
// caller's point of view.
func (h *VerifyHandlers) consumeState(ctx context.Context, state string) (*verification.PendingVerification, error) {
	if state == "" {
		return nil, verification.ErrNotFound
	}
	pending, err := h.store.Consume(ctx, state)
	if err != nil {
		if !errors.Is(err, verification.ErrNotFound) {
			logging.Error("Pending store consume failed", "error", err.Error())
		}
		return nil, err
	}
	return pending, nil
}

func (h *VerifyHandlers) renderSuccess(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = successTemplate.Execute(w, terminalPage{Message: message})
}

func (h *VerifyHandlers) renderError(w http.ResponseWriter, statusCode int, errCode string) {
	if h.metrics != nil {
		h.metrics.VerificationOutcomesTotal.WithLabelValues(errCode).Inc()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = errorTemplate.Execute(w, terminalPage{Message: constants.GetErrorMessage(errCode)})
}

// isSnowflake reports whether s is a non-empty decimal Discord ID.
func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
