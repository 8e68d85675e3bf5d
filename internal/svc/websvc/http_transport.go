package websvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/webauth/internal/domain"
	context_ "github.com/mkrupp/webauth/internal/infra/context"
	"github.com/mkrupp/webauth/internal/infra/logging"
	http_ "github.com/mkrupp/webauth/internal/infra/transport/http"
)

// User-facing messages. Invalid credentials use one message for unknown
// email and wrong password alike, and storage faults never leak detail.
const (
	msgAllFieldsRequired  = "All fields are required."
	msgPasswordsMismatch  = "Passwords do not match."
	msgEmailTaken         = "Email is already registered."
	msgEmailPasswordReq   = "Email and password are required."
	msgInvalidCredentials = "Invalid email or password."
	msgStorageFault       = "Something went wrong. Please try again."
	msgWelcome            = "Welcome!"
	msgSignedIn           = "Signed in successfully."
	msgPleaseSignIn       = "Please sign in first."
)

// Flash kinds.
const (
	flashSuccess = "success"
	flashError   = "error"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// CookieName is the name of the session cookie
	CookieName string `env:"COOKIE_NAME" default:"session_id"`
}

// HTTPTransport serves the web surface: home, signup, signin, logout, and
// the gated dashboard. Handlers emit ViewData payloads; markup comes from
// the Renderer.
type HTTPTransport struct {
	accounts *AccountService
	sessions *SessionManager
	renderer *Renderer
	log      logging.Logger
	cfg      HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given
// configuration. It requires an AccountService and a SessionManager.
// Returns an error if the embedded views fail to parse.
func NewHTTPTransport(
	accounts *AccountService,
	sessions *SessionManager,
	cfg HTTPTransportConfig,
) (*HTTPTransport, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("new renderer: %w", err)
	}

	return &HTTPTransport{
		accounts: accounts,
		sessions: sessions,
		renderer: renderer,
		log:      logging.GetLogger("svc.websvc.http_transport"),
		cfg:      cfg,
	}, nil
}

// ServeHTTP implements http.Handler and sets up the route table:
// - GET  /: home page with the resolved user, if any
// - GET  /signup, POST /signup: registration
// - GET  /signin, POST /signin: sign-in
// - GET  /logout: session destruction
// - GET  /dashboard: protected page, gated by RequireAccount
// Any other path is a 404.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", ht.HandleHome)
	mux.HandleFunc("GET /signup", ht.HandleSignupForm)
	mux.HandleFunc("POST /signup", ht.HandleSignup)
	mux.HandleFunc("GET /signin", ht.HandleSigninForm)
	mux.HandleFunc("POST /signin", ht.HandleSignin)
	mux.HandleFunc("GET /logout", ht.HandleLogout)
	mux.Handle("GET /dashboard", ht.RequireAccount(http.HandlerFunc(ht.HandleDashboard)))
	mux.ServeHTTP(w, r)
}

// sessionID extracts the session id from the request cookie, or "" if absent.
func (ht *HTTPTransport) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(ht.cfg.CookieName)
	if err != nil {
		return ""
	}

	return cookie.Value
}

func (ht *HTTPTransport) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ht.cfg.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(ht.sessions.Config.TTLSeconds),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (ht *HTTPTransport) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     ht.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash consumes the session's flash for rendering. Flash faults never
// fail a page; they are logged and the page renders without one.
func (ht *HTTPTransport) takeFlash(ctx context.Context, sessionID string) *domain.Flash {
	flash, ok, err := ht.sessions.TakeFlash(ctx, sessionID)
	if err != nil {
		ht.log.WarnContext(ctx, "take flash failed", "error", err)

		return nil
	} else if !ok {
		return nil
	}

	return flash
}

// HandleHome renders the home page with the resolved user, if any.
func (ht *HTTPTransport) HandleHome(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleHome(w, r)
}

func (ht *HTTPTransport) handleHome(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "render home failed", "error", err)
		} else {
			log.DebugContext(ctx, "home rendered")
		}
	}(r.Context())

	sessionID := ht.sessionID(r)

	// An unresolvable session renders the anonymous home page.
	user, _, vErr := ht.sessions.Validate(r.Context(), sessionID)
	if vErr != nil {
		log.WarnContext(r.Context(), "validate session failed", "error", vErr)

		user = nil
	}

	return ht.renderer.Render(w, http.StatusOK, "home", ViewData{
		User:  user,
		Flash: ht.takeFlash(r.Context(), sessionID),
	})
}

// HandleSignupForm renders the empty signup form.
func (ht *HTTPTransport) HandleSignupForm(w http.ResponseWriter, r *http.Request) {
	_ = ht.renderForm(w, r, "signup")
}

// HandleSigninForm renders the empty signin form.
func (ht *HTTPTransport) HandleSigninForm(w http.ResponseWriter, r *http.Request) {
	_ = ht.renderForm(w, r, "signin")
}

func (ht *HTTPTransport) renderForm(w http.ResponseWriter, r *http.Request, view string) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "render form failed", "error", err)
		} else {
			log.DebugContext(ctx, "form rendered")
		}
	}(r.Context())

	return ht.renderer.Render(w, http.StatusOK, view, ViewData{
		Values: map[string]string{"email": ""},
		Flash:  ht.takeFlash(r.Context(), ht.sessionID(r)),
	})
}

// HandleSignup processes registration requests.
// Expects form parameters: email, password, confirmPassword.
func (ht *HTTPTransport) HandleSignup(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSignup(w, r)
}

func (ht *HTTPTransport) handleSignup(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "signup failed", "error", err)
		} else {
			log.DebugContext(ctx, "signup succeeded")
		}
	}(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	email := r.FormValue("email")

	acct, err := ht.accounts.Register(
		r.Context(),
		email,
		r.FormValue("password"),
		r.FormValue("confirmPassword"),
	)
	if err != nil {
		var (
			status  int
			message string
		)

		switch {
		case errors.Is(err, domain.ErrMissingFields):
			status, message = http.StatusBadRequest, msgAllFieldsRequired
		case errors.Is(err, domain.ErrPasswordMismatch):
			status, message = http.StatusBadRequest, msgPasswordsMismatch
		case errors.Is(err, domain.ErrEmailTaken):
			status, message = http.StatusBadRequest, msgEmailTaken
		default:
			status, message = http.StatusInternalServerError, msgStorageFault
		}

		if rErr := ht.renderer.Render(w, status, "signup", ViewData{
			Values: map[string]string{"email": NormalizeEmail(email)},
			Error:  message,
		}); rErr != nil {
			return errors.Join(err, rErr)
		}

		return fmt.Errorf("register: %w", err)
	}

	return ht.establishSession(w, r, acct, msgWelcome, "signup")
}

// HandleSignin processes sign-in requests.
// Expects form parameters: email, password.
func (ht *HTTPTransport) HandleSignin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSignin(w, r)
}

func (ht *HTTPTransport) handleSignin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "signin failed", "error", err)
		} else {
			log.DebugContext(ctx, "signin succeeded")
		}
	}(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	email := r.FormValue("email")

	acct, err := ht.accounts.Authenticate(r.Context(), email, r.FormValue("password"))
	if err != nil {
		var (
			status  int
			message string
		)

		switch {
		case errors.Is(err, domain.ErrMissingFields):
			status, message = http.StatusBadRequest, msgEmailPasswordReq
		case errors.Is(err, domain.ErrInvalidCredentials):
			status, message = http.StatusBadRequest, msgInvalidCredentials
		default:
			status, message = http.StatusInternalServerError, msgStorageFault
		}

		if rErr := ht.renderer.Render(w, status, "signin", ViewData{
			Values: map[string]string{"email": NormalizeEmail(email)},
			Error:  message,
		}); rErr != nil {
			return errors.Join(err, rErr)
		}

		return fmt.Errorf("authenticate: %w", err)
	}

	return ht.establishSession(w, r, acct, msgSignedIn, "signin")
}

// establishSession issues a session for the account, replacing whatever
// session the request's cookie referenced, and redirects to the dashboard.
func (ht *HTTPTransport) establishSession(
	w http.ResponseWriter,
	r *http.Request,
	acct *domain.Account,
	flashText string,
	view string,
) error {
	ctx := r.Context()

	if prior := ht.sessionID(r); prior != "" {
		if err := ht.sessions.Destroy(ctx, prior); err != nil {
			ht.log.WarnContext(ctx, "destroy prior session failed", "error", err)
		}
	}

	sessionID, err := ht.sessions.Create(ctx, acct.ID)
	if err != nil {
		if rErr := ht.renderer.Render(w, http.StatusInternalServerError, view, ViewData{
			Values: map[string]string{"email": acct.Email},
			Error:  msgStorageFault,
		}); rErr != nil {
			return errors.Join(err, rErr)
		}

		return fmt.Errorf("create session: %w", err)
	}

	if err := ht.sessions.SetFlash(ctx, sessionID, flashSuccess, flashText); err != nil {
		ht.log.WarnContext(ctx, "set flash failed", "error", err)
	}

	ht.setSessionCookie(w, sessionID)
	http.Redirect(w, r, "/dashboard", http.StatusFound)

	return nil
}

// HandleLogout destroys the session referenced by the cookie and redirects
// to the home page. Destroying an absent session is not an error.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogout(w, r)
}

func (ht *HTTPTransport) handleLogout(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "logout failed", "error", err)
		} else {
			log.DebugContext(ctx, "logged out")
		}
	}(r.Context())

	err = ht.sessions.Destroy(r.Context(), ht.sessionID(r))

	ht.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)

	return err
}

// HandleDashboard renders the dashboard for the account resolved by the
// access gate.
func (ht *HTTPTransport) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDashboard(w, r)
}

func (ht *HTTPTransport) handleDashboard(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "render dashboard failed", "error", err)
		} else {
			log.DebugContext(ctx, "dashboard rendered")
		}
	}(r.Context())

	user, ok := context_.AccountFromContext(r.Context())
	if !ok {
		// The gate always runs first; reaching here without an account is a
		// wiring bug.
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return domain.ErrAccountNotFound
	}

	return ht.renderer.Render(w, http.StatusOK, "dashboard", ViewData{
		User:  user,
		Flash: ht.takeFlash(r.Context(), ht.sessionID(r)),
	})
}
