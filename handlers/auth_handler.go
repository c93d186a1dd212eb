package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/middleware"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/services"
)

// SessionCookies issues and clears the httpOnly session cookie.
type SessionCookies struct {
	tokens *services.TokenService
	secure bool
}

// NewSessionCookies: secure cookies are sent cross-site (SameSite=None), others are Strict.
func NewSessionCookies(tokens *services.TokenService, secure bool) *SessionCookies {
	return &SessionCookies{tokens: tokens, secure: secure}
}

func (c *SessionCookies) set(w http.ResponseWriter, subject uuid.UUID, kind models.PrincipalKind) error {
	token, expiresAt, err := c.tokens.Issue(subject, kind)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(token, expiresAt))
	return nil
}

func (c *SessionCookies) clear(w http.ResponseWriter) {
	cookie := c.cookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

func (c *SessionCookies) cookie(value string, expiresAt time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if c.secure {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	if value != "" {
		cookie.MaxAge = int(time.Until(expiresAt).Seconds())
	}
	return cookie
}

type AuthHandler struct {
	*Responder
	cookies     *SessionCookies
	authService services.AuthService
	otpService  *services.OTPService
}

func NewAuthHandler(responder *Responder, cookies *SessionCookies, authService services.AuthService, otpService *services.OTPService) *AuthHandler {
	return &AuthHandler{
		Responder:   responder,
		cookies:     cookies,
		authService: authService,
		otpService:  otpService,
	}
}

// Register godoc
// @Summary Register a player account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body services.RegisterInput true "Account"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 409 {object} map[string]interface{} "Email already registered"
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}

	user, err := h.authService.Register(r.Context(), input)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if err := h.cookies.set(w, user.ID, models.PrincipalUser); err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusCreated, jsonResponse{"user": user})
}

// Login godoc
// @Summary Log in as a player
// @Tags auth
// @Accept json
// @Produce json
// @Param body body services.LoginInput true "Credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "Invalid email or password"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}

	user, err := h.authService.Login(r.Context(), input)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if err := h.cookies.set(w, user.ID, models.PrincipalUser); err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"user": user})
}

// Logout godoc
// @Summary Clear the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.clear(w)
	h.success(w, r, http.StatusOK, jsonResponse{"message": "Logged out"})
}

// IsAuthenticated godoc
// @Summary Check the current session
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /auth/is-auth [get]
func (h *AuthHandler) IsAuthenticated(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"identity": identity})
}

type otpTargetRequest struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	OTP    string     `json:"otp,omitempty"`
}

// otpTarget resolves which account an OTP request is about. Only admins may name another user.
func otpTarget(identity *models.Identity, requested *uuid.UUID) (uuid.UUID, error) {
	if identity.IsOrganizer() {
		return uuid.Nil, services.ErrForbidden
	}
	if requested == nil || *requested == uuid.Nil || *requested == identity.ID {
		return identity.ID, nil
	}
	if !identity.IsAdmin {
		return uuid.Nil, services.ErrForbidden
	}
	return *requested, nil
}

func (h *AuthHandler) readOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return readJSON(w, r, dst)
}

// SendVerifyOTP godoc
// @Summary Email an account verification code
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Account already verified"
// @Failure 429 {object} map[string]interface{}
// @Router /auth/send-verify-otp [post]
func (h *AuthHandler) SendVerifyOTP(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var input otpTargetRequest
	if err := h.readOptionalJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}
	userID, err := otpTarget(identity, input.UserID)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	if err := h.otpService.IssueVerificationCode(r.Context(), userID); err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"message": "Verification OTP sent to your email"})
}

// VerifyAccount godoc
// @Summary Verify the account with the emailed code
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{} "Code expired"
// @Failure 422 {object} map[string]interface{} "Invalid code"
// @Router /auth/verify-account [post]
func (h *AuthHandler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var input otpTargetRequest
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}
	userID, err := otpTarget(identity, input.UserID)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	if err := h.otpService.VerifyCode(r.Context(), userID, input.OTP, models.OTPVerification); err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"message": "Email verified successfully"})
}

// SendResetOTP godoc
// @Summary Email a password reset code
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "User not found"
// @Failure 429 {object} map[string]interface{}
// @Router /auth/send-reset-otp [post]
func (h *AuthHandler) SendResetOTP(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}
	if input.Email == "" {
		h.Error(w, r, services.NewValidationError("email", "is required"))
		return
	}

	if err := h.otpService.IssueResetCode(r.Context(), input.Email); err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"message": "OTP sent to your email"})
}

// ResetPassword godoc
// @Summary Reset the password with the emailed code
// @Tags auth
// @Accept json
// @Produce json
// @Param body body services.ResetPasswordInput true "Reset request"
// @Success 200 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{} "Code expired"
// @Failure 422 {object} map[string]interface{} "Invalid code"
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input services.ResetPasswordInput
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}

	if err := h.otpService.ConsumeResetCode(r.Context(), input.Email, input.OTP, input.NewPassword); err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"message": "Password has been reset successfully"})
}
