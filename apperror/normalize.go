package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/golang-jwt/jwt/v5"
)

const GenericMessage = "Something went very wrong!"

// Normalize maps err to an AppError. Known failure classes become
// operational client errors; anything else is a non-operational 500.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}

	var (
		cast     *database.CastError
		dup      *database.DuplicateKeyError
		syntax   *json.SyntaxError
		typeErr  *json.UnmarshalTypeError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.As(err, &cast):
		return Wrap(err, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s.", cast.Path, cast.Value))
	case errors.As(err, &dup):
		return Wrap(err, http.StatusBadRequest, fmt.Sprintf("Duplicate field value: %v. Please use another value!", dup.Value))
	case models.ValidationMessages(err) != nil:
		return Wrap(err, http.StatusBadRequest, "Invalid input data. "+strings.Join(models.ValidationMessages(err), ". "))
	case errors.Is(err, jwt.ErrTokenExpired):
		return Wrap(err, http.StatusUnauthorized, "Your token has expired! Please log in again.")
	case isTokenError(err):
		return Wrap(err, http.StatusUnauthorized, "Invalid token. Please log in again!")
	case errors.As(err, &maxBytes):
		return Wrap(err, http.StatusRequestEntityTooLarge, "Request body too large.")
	case errors.As(err, &syntax), errors.As(err, &typeErr):
		return Wrap(err, http.StatusBadRequest, "Invalid request body: "+err.Error())
	case errors.Is(err, database.ErrNotFound):
		return Wrap(err, http.StatusNotFound, "No document found with that ID")
	}

	return &AppError{
		StatusCode: http.StatusInternalServerError,
		Status:     StatusError,
		Message:    GenericMessage,
		Err:        err,
		Stack:      string(debug.Stack()),
	}
}

func isTokenError(err error) bool {
	for _, target := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenInvalidClaims,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
