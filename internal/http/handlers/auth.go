package handlers

import (
	"context"
	"net/http"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/middleware"
)

type googleVerifyRequest struct {
	IDToken string `json:"id_token"`
}

type googleVerifyResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

func (a *App) AuthGoogleVerify(w http.ResponseWriter, r *http.Request) {
	var req googleVerifyRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.IDToken == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id_token required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	identity, err := a.GoogleVerifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("google verify failed")
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid google token")
		return
	}
	if !identity.EmailVerified {
		a.error(w, http.StatusUnauthorized, "unauthorized", "email not verified")
		return
	}
	user, _, err := a.Ledger.EnsureUser(r.Context(), domain.NewUser{
		Email:   identity.Email,
		Name:    identity.Name,
		Image:   identity.Picture,
		Country: middleware.CountryFromContext(r.Context()),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token, expires, err := a.Sessions.Issue(user.ID, user.Email, middleware.KindSession)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.setCookie(w, middleware.SessionCookieName, token, expires)
	a.json(w, http.StatusOK, googleVerifyResponse{Token: token, User: toUserDTO(user)})
}

type devLoginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

func (a *App) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !a.DevLoginEnabled {
		a.error(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	var req devLoginRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	user, _, err := a.Ledger.EnsureUser(r.Context(), domain.NewUser{
		Email:   req.Email,
		Name:    req.Name,
		Image:   req.Image,
		Country: middleware.CountryFromContext(r.Context()),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token, expires, err := a.Sessions.Issue(user.ID, user.Email, middleware.KindDev)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.setCookie(w, middleware.DevSessionCookieName, token, expires)
	a.json(w, http.StatusOK, map[string]any{"success": true, "user": toUserDTO(user)})
}

// DevSession reports the user behind the dev cookie, or null.
func (a *App) DevSession(w http.ResponseWriter, r *http.Request) {
	if !a.DevLoginEnabled {
		a.error(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.Source != "dev-cookie" {
		a.json(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	user, err := a.Ledger.User(r.Context(), p.UserID)
	if err != nil {
		a.json(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user": map[string]any{
		"id":               user.ID,
		"email":            user.Email,
		"name":             user.Name,
		"image":            user.Image,
		"creditsBalance":   user.CreditsBalance,
		"profileCompleted": user.ProfileCompleted,
	}})
}

func (a *App) DevLogout(w http.ResponseWriter, r *http.Request) {
	if !a.DevLoginEnabled {
		a.error(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.DevSessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	a.json(w, http.StatusOK, map[string]bool{"success": true})
}

type meResponse struct {
	Credits          int     `json:"credits"`
	ProfileCompleted bool    `json:"profileCompleted"`
	User             userDTO `json:"user"`
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.Ledger.User(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, meResponse{
		Credits:          user.CreditsBalance,
		ProfileCompleted: user.ProfileCompleted,
		User:             toUserDTO(user),
	})
}

func (a *App) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	user, granted, err := a.Ledger.CompleteProfile(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"credits":          user.CreditsBalance,
		"profileCompleted": user.ProfileCompleted,
		"bonusGranted":     granted,
	})
}

func (a *App) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
