package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// AuthorClaim names the token claim that carries the author ID
const AuthorClaim = "sub"

var errNoAuthor = errors.New("token has no author")

// Authenticated verifies bearer tokens signed with ja and rejects requests
// without one. Handlers mounted behind it act for the token's author only.
func Authenticated(ja *jwtauth.JWTAuth) Middleware {
	verify := jwtauth.Verifier(ja)
	return func(next http.Handler) http.Handler {
		return verify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok, err := tokenAuthor(r.Context()); err != nil || !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "unauthorized", Message: "A valid token is required"}})
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// tokenAuthor returns the author of a verified token. ok is false when the
// request went through no verifier.
func tokenAuthor(ctx context.Context) (uuid.UUID, bool, error) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return uuid.Nil, false, err
	}
	if token == nil {
		return uuid.Nil, false, nil
	}

	sub, _ := claims[AuthorClaim].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false, errNoAuthor
	}
	return id, true, nil
}
