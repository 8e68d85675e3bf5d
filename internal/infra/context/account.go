package context

import (
	"context"

	"github.com/mkrupp/webauth/internal/domain"
)

const contextKeyAccount = contextKey("account")

// AccountFromContext extracts the authenticated account from the context.
// Returns the account and true if present, or nil and false if the request
// is anonymous.
func AccountFromContext(ctx context.Context) (*domain.Account, bool) {
	account, ok := ctx.Value(contextKeyAccount).(*domain.Account)

	return account, ok
}

// WithAccount creates a new context carrying the resolved account for the
// current request. Set by the access gate once the session has validated.
func WithAccount(ctx context.Context, account *domain.Account) context.Context {
	return context.WithValue(ctx, contextKeyAccount, account)
}
