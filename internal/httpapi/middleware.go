package httpapi

import (
	"context"
	"net/http"

	"utmcore/internal/apierr"
	"utmcore/internal/auth"
)

// requireAdmin authenticates the caller as the admin principal via the
// Authorization: Bearer <jwt> header before invoking next.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, apierr.New(apierr.Unauthorized, "missing bearer token"))
			return
		}
		principal, err := auth.ParseAdminJWT(tok, a.adminSecret)
		if err != nil {
			writeError(w, apierr.New(apierr.Unauthorized, "invalid admin token"))
			return
		}
		ctx := auth.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireDroneToken resolves the Authorization: Bearer <session-token>
// header to a drone_id via the store's token table and injects a drone
// Principal.
func (a *API) requireDroneToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, apierr.New(apierr.Unauthorized, "missing bearer token"))
			return
		}
		droneID, err := a.store.DroneIDForToken(tok)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), &auth.Principal{Name: droneID, Kind: "drone"})
		ctx = contextWithToken(ctx, tok)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRegistrationSecret checks the X-Registration-Token header in
// constant time against the configured shared secret, when one is
// configured. An empty configured secret disables the check (open
// registration, e.g. for local development).
func (a *API) requireRegistrationSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.registrationSecret != "" {
			if !auth.ConstantTimeEquals(r.Header.Get("X-Registration-Token"), a.registrationSecret) {
				writeError(w, apierr.New(apierr.Unauthorized, "invalid registration token"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type tokenKey struct{}

func contextWithToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, tokenKey{}, tok)
}

func tokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok
}
