package database

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotFound = errors.New("document not found")

// DuplicateKeyError reports a unique index violation.
type DuplicateKeyError struct {
	Collection string
	Field      string
	Value      any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key in %s: %s=%v", e.Collection, e.Field, e.Value)
}

// CastError reports a value that could not be converted to the type of Path.
type CastError struct {
	Path  string
	Value string
	Err   error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast to %s failed for value %q", e.Path, e.Value)
}

func (e *CastError) Unwrap() error { return e.Err }

// ParseObjectID converts hex to an ObjectID, returning a CastError on bad input.
func ParseObjectID(path, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, &CastError{Path: path, Value: hex, Err: err}
	}
	return id, nil
}

var dupKeyPattern = regexp.MustCompile(`dup key: \{ ?([^:]+): (.+?) ?\}`)

func parseDuplicateKey(collection string, err error) *DuplicateKeyError {
	dup := &DuplicateKeyError{Collection: collection}
	m := dupKeyPattern.FindStringSubmatch(err.Error())
	if m == nil {
		dup.Field = "key"
		dup.Value = err.Error()
		return dup
	}
	dup.Field = strings.TrimSpace(m[1])
	dup.Value = strings.Trim(strings.TrimSpace(m[2]), `"`)
	return dup
}
