package websvc

import (
	"errors"
	"net/http"

	"github.com/mkrupp/webauth/internal/domain"
	context_ "github.com/mkrupp/webauth/internal/infra/context"
)

// RequireAccount gates a handler behind a validated session. Each request is
// either Authenticated or Anonymous: if the session cookie resolves to a live
// account, the account is placed in the request context and the handler runs;
// otherwise an error flash is attached to the caller's session (creating an
// anonymous one if needed) and the request is redirected to the sign-in page.
func (ht *HTTPTransport) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ht.sessionID(r)

		acct, ok, err := ht.sessions.Validate(r.Context(), sessionID)
		if err != nil {
			ht.log.ErrorContext(r.Context(), "validate session failed", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		}

		if !ok {
			ht.redirectToSignin(w, r, sessionID)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithAccount(r.Context(), acct)))
	})
}

// redirectToSignin flashes "please sign in" on the caller's session and
// redirects. A missing or dead session gets replaced by an anonymous one so
// the flash survives the redirect.
func (ht *HTTPTransport) redirectToSignin(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	err := ht.sessions.SetFlash(ctx, sessionID, flashError, msgPleaseSignIn)
	if errors.Is(err, domain.ErrSessionNotFound) {
		anonID, cErr := ht.sessions.CreateAnonymous(ctx)
		if cErr != nil {
			ht.log.WarnContext(ctx, "create anonymous session failed", "error", cErr)
		} else {
			if fErr := ht.sessions.SetFlash(ctx, anonID, flashError, msgPleaseSignIn); fErr != nil {
				ht.log.WarnContext(ctx, "set flash failed", "error", fErr)
			}

			ht.setSessionCookie(w, anonID)
		}
	} else if err != nil {
		ht.log.WarnContext(ctx, "set flash failed", "error", err)
	}

	http.Redirect(w, r, "/signin", http.StatusFound)
}
