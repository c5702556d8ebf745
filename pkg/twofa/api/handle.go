package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	apperrors "github.com/drfintrack/fintrack-auth/pkg/errors"
	"github.com/drfintrack/fintrack-auth/pkg/ratelimit"
	"github.com/drfintrack/fintrack-auth/pkg/twofa"
)

// Handle serves the 2FA HTTP API.
type Handle struct {
	twoFaService *twofa.Service
	jwtAuth      *jwtauth.JWTAuth
	loginLimiter *ratelimit.KeyedLimiter
}

// Option configures a Handle
type Option func(*Handle)

// WithLoginLimiter enables per-IP rate limiting on the public login
// endpoints
func WithLoginLimiter(l *ratelimit.KeyedLimiter) Option {
	return func(h *Handle) {
		h.loginLimiter = l
	}
}

// NewHandle creates a new Handle
func NewHandle(twoFaService *twofa.Service, jwtAuth *jwtauth.JWTAuth, opts ...Option) *Handle {
	h := &Handle{
		twoFaService: twoFaService,
		jwtAuth:      jwtAuth,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TwoFaHandler returns a http.Handler for the 2FA API. Login endpoints
// are public (credentials in the body); enrollment and disable require
// an authenticated session.
func TwoFaHandler(h *Handle) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.loginLimiter != nil {
			r.Use(ratelimit.Middleware(h.loginLimiter))
		}
		r.Post("/login", h.PostLogin)
		r.Post("/login/verify", h.PostLoginVerify)
	})

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.jwtAuth))
		r.Use(jwtauth.Authenticator(h.jwtAuth))
		r.Post("/enroll", h.PostEnroll)
		r.Post("/enroll/confirm", h.PostEnrollConfirm)
		r.Post("/disable", h.PostDisable)
		r.Get("/factors", h.GetFactors)
	})

	return r
}

// First authentication step: password check, then either a session or
// an open challenge.
// (POST /login)
func (h *Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	var data LoginRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderBadRequest(w, r, "unable to parse body")
		return
	}

	res, err := h.twoFaService.LoginChallenge(r.Context(), data.Email, data.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginResponse{
		RequiresTwoFA: res.RequiresTwoFA,
		ChallengeID:   res.ChallengeID,
		Tokens:        res.Tokens,
	})
}

// Second authentication step: answer an open challenge with a TOTP or
// backup code.
// (POST /login/verify)
func (h *Handle) PostLoginVerify(w http.ResponseWriter, r *http.Request) {
	var data LoginVerifyRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderBadRequest(w, r, "unable to parse body")
		return
	}

	challengeID, err := uuid.Parse(data.ChallengeID)
	if err != nil {
		renderBadRequest(w, r, "invalid challenge id")
		return
	}

	tokens, err := h.twoFaService.LoginVerify(r.Context(), challengeID, data.Code)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginResponse{RequiresTwoFA: true, Tokens: tokens})
}

// Begin 2FA enrollment for the authenticated user. The response is the
// only time the secret and backup codes are revealed.
// (POST /enroll)
func (h *Handle) PostEnroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	var data EnrollRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderBadRequest(w, r, "unable to parse body")
		return
	}

	start, err := h.twoFaService.StartEnrollment(r.Context(), userID, data.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, EnrollResponse{
		FactorID:    start.FactorID,
		Secret:      start.Secret,
		QRPayload:   start.QRPayload,
		BackupCodes: start.BackupCodes,
	})
}

// Confirm enrollment with the first TOTP code.
// (POST /enroll/confirm)
func (h *Handle) PostEnrollConfirm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticatedUser(w, r); !ok {
		return
	}

	var data ConfirmRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderBadRequest(w, r, "unable to parse body")
		return
	}

	factorID, err := uuid.Parse(data.FactorID)
	if err != nil {
		renderBadRequest(w, r, "invalid factor id")
		return
	}

	if err := h.twoFaService.ConfirmEnrollment(r.Context(), factorID, data.Code); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Result: "success"})
}

// Disable 2FA. Requires the password and a valid TOTP or backup code.
// (POST /disable)
func (h *Handle) PostDisable(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	var data DisableRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderBadRequest(w, r, "unable to parse body")
		return
	}

	if err := h.twoFaService.Disable(r.Context(), userID, data.Password, data.Code); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Result: "success"})
}

// List the authenticated user's factors, secrets excluded.
// (GET /factors)
func (h *Handle) GetFactors(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	summaries, err := h.twoFaService.ListFactors(r.Context(), userID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, FactorsResponse{Factors: summaries})
}

// authenticatedUser extracts the user ID from the verified JWT subject.
// Writes a 401 and returns false when the token is unusable.
func (h *Handle) authenticatedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		renderError(w, r, apperrors.NotAuthenticated("missing or invalid token"))
		return uuid.Nil, false
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		renderError(w, r, apperrors.NotAuthenticated("token has no subject"))
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		renderError(w, r, apperrors.NotAuthenticated("token subject is not a user id"))
		return uuid.Nil, false
	}
	return userID, true
}

func renderBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Code: string(apperrors.ErrCodeInvalidInput), Error: msg})
}

// renderError maps structured service errors onto HTTP status codes.
// Messages pass through as-is; the services already keep authentication
// failures non-distinguishing.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		slog.Error("Unstructured error reached the API layer", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: string(apperrors.ErrCodeInternal), Error: "internal error"})
		return
	}

	status := appErr.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "code", appErr.Code, "error", appErr)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Code: string(appErr.Code), Error: appErr.Message})
}
