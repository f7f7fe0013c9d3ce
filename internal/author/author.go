// Package author matches users exported from a source instance to accounts
// on the destination instance. Matching is read-only: it consults an
// AccountLookup and returns immutable results.
package author

import (
	"context"
	"strconv"
	"strings"

	"authormigrate/internal/errors"
)

// ExportedUser is one entry of a source-system user export.
type ExportedUser struct {
	ID          int64  `json:"ID" mapstructure:"ID"`
	Login       string `json:"user_login" mapstructure:"user_login"`
	DisplayName string `json:"display_name" mapstructure:"display_name"`
	Email       string `json:"user_email" mapstructure:"user_email"`
}

// Account is a user account on the destination system.
type Account struct {
	ID          int64  `bson:"_id" db:"ID"`
	Login       string `bson:"user_login" db:"user_login"`
	DisplayName string `bson:"display_name" db:"display_name"`
	Email       string `bson:"user_email" db:"user_email"`
}

// AccountLookup finds destination accounts. A missing account is reported
// with ok == false and a nil error; errors are reserved for lookup failures.
type AccountLookup interface {
	AccountByID(ctx context.Context, id int64) (Account, bool, error)
	AccountByLogin(ctx context.Context, login string) (Account, bool, error)
	AccountByEmail(ctx context.Context, email string) (Account, bool, error)
}

// MatchedAuthor is the outcome of matching one exported user.
// NewID is meaningful only when Mapped is true.
type MatchedAuthor struct {
	OldID       int64
	NewID       int64
	Login       string
	Mapped      bool
	NeedsUpdate bool
}

// Match finds the local account for user, first by login and then by email.
func Match(ctx context.Context, user ExportedUser, lookup AccountLookup) (MatchedAuthor, error) {
	matched := MatchedAuthor{
		OldID: user.ID,
		Login: user.Login,
	}

	account, ok, err := lookup.AccountByLogin(ctx, user.Login)
	if err != nil {
		return MatchedAuthor{}, err
	}

	if !ok {
		account, ok, err = lookup.AccountByEmail(ctx, user.Email)
		if err != nil {
			return MatchedAuthor{}, err
		}
	}

	if ok {
		matched.NewID = account.ID
		matched.Mapped = true
		matched.NeedsUpdate = matched.OldID != matched.NewID
	}

	return matched, nil
}

// ResolveDefault resolves the fallback account. A numeric identifier is
// looked up by ID, one containing "@" by email, anything else by login.
func ResolveDefault(ctx context.Context, identifier string, lookup AccountLookup) (MatchedAuthor, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		account Account
		ok      bool
		err     error
	)

	if id, convErr := strconv.ParseInt(identifier, 10, 64); convErr == nil {
		account, ok, err = lookup.AccountByID(ctx, id)
	} else if strings.Contains(identifier, "@") {
		account, ok, err = lookup.AccountByEmail(ctx, identifier)
	} else {
		account, ok, err = lookup.AccountByLogin(ctx, identifier)
	}

	if err != nil {
		return MatchedAuthor{}, errors.NewDefaultAuthorError(identifier, err)
	}
	if !ok {
		return MatchedAuthor{}, errors.NewDefaultAuthorError(identifier, nil)
	}

	return MatchedAuthor{
		OldID:       account.ID,
		NewID:       account.ID,
		Login:       account.Login,
		Mapped:      true,
		NeedsUpdate: true,
	}, nil
}
