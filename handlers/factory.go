package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/opentelemetry"
	"github.com/AgiriTaofeek/natours-app/query"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const overlayKey = "bodyOverlay"

type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

// Hooks customise a Resource. Every hook is optional.
type Hooks[T any] struct {
	// PreFilter scopes list reads, e.g. reviews of one tour.
	PreFilter func(c *gin.Context) bson.M
	// Fill sets fields the client does not send, from the route or session.
	Fill func(c *gin.Context, doc *T) error
	// Prepare derives fields before validation. existing is nil on create.
	Prepare func(ctx context.Context, doc *T, existing *T) error
	// AfterWrite runs once a write is stored. previous is the document
	// before an update.
	AfterWrite func(ctx context.Context, op Op, doc *T, previous *T) error
	// Expand populates references on list reads.
	Expand func(ctx context.Context, docs []T) error
	// PopulateOne populates references on single reads.
	PopulateOne func(ctx context.Context, doc *T) error
	// ReadOnly lists stored fields an update never writes, such as
	// aggregates maintained by other resources.
	ReadOnly []string
}

// Resource is the generic CRUD controller for one collection.
type Resource[T any] struct {
	name   string
	store  database.Collection[T]
	scope  func() bson.M
	schema query.Schema
	hooks  Hooks[T]
}

// NewResource builds the controller. scope returns the default filter every
// read, update and delete is restricted to; nil means no restriction.
func NewResource[T any](name string, store database.Collection[T], scope func() bson.M, schema query.Schema, hooks Hooks[T]) *Resource[T] {
	if scope == nil {
		scope = func() bson.M { return bson.M{} }
	}
	return &Resource[T]{name: name, store: store, scope: scope, schema: schema, hooks: hooks}
}

func (r *Resource[T]) notFound() *apperror.AppError {
	return apperror.NotFound("No document found with that ID")
}

func (r *Resource[T]) GetAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), r.name+"-get-all")
		defer func() { span.End() }()

		base := r.scope()
		if r.hooks.PreFilter != nil {
			base = database.Merge(base, r.hooks.PreFilter(c))
		}
		features, err := query.New(r.store, base, c.Request.URL.Query(), r.schema).
			Filter().
			Sort().
			LimitFields().
			Paginate(ctx)
		if err != nil {
			httpError(err, span, c)
			return
		}

		span.AddEvent("Retrieving documents from the database")
		docs, err := r.store.Find(ctx, features.Query())
		if err != nil {
			httpError(err, span, c)
			return
		}
		if r.hooks.Expand != nil {
			if err := r.hooks.Expand(ctx, docs); err != nil {
				httpError(err, span, c)
				return
			}
		}
		sendList(c, docs, len(docs))
	}
}

func (r *Resource[T]) GetOne() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), r.name+"-get-one")
		defer func() { span.End() }()

		id, err := objectIDParam(c, "id")
		if err != nil {
			httpError(err, span, c)
			return
		}
		doc, err := r.store.FindOne(ctx, database.ByID(id, r.scope()))
		if errors.Is(err, database.ErrNotFound) {
			httpError(r.notFound(), span, c)
			return
		}
		if err != nil {
			httpError(err, span, c)
			return
		}
		if r.hooks.PopulateOne != nil {
			if err := r.hooks.PopulateOne(ctx, doc); err != nil {
				httpError(err, span, c)
				return
			}
		}
		sendData(c, http.StatusOK, doc)
	}
}

func (r *Resource[T]) CreateOne() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), r.name+"-create")
		defer func() { span.End() }()

		doc := new(T)
		if err := bindBody(c, doc); err != nil {
			httpError(err, span, c)
			return
		}
		if m, ok := any(doc).(database.Model); ok {
			m.SetID(primitive.NilObjectID)
		}
		if err := r.write(ctx, c, doc, nil); err != nil {
			httpError(err, span, c)
			return
		}

		span.AddEvent("Inserting document")
		if err := r.store.Insert(ctx, doc); err != nil {
			httpError(err, span, c)
			return
		}
		if r.hooks.AfterWrite != nil {
			if err := r.hooks.AfterWrite(ctx, OpCreate, doc, nil); err != nil {
				httpError(err, span, c)
				return
			}
		}
		sendData(c, http.StatusCreated, doc)
	}
}

// UpdateOne overlays the request body on the stored document, re-validates
// the result and stores it.
func (r *Resource[T]) UpdateOne() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), r.name+"-update")
		defer func() { span.End() }()

		id, err := objectIDParam(c, "id")
		if err != nil {
			httpError(err, span, c)
			return
		}
		filter := database.ByID(id, r.scope())
		existing, err := r.store.FindOne(ctx, filter)
		if errors.Is(err, database.ErrNotFound) {
			httpError(r.notFound(), span, c)
			return
		}
		if err != nil {
			httpError(err, span, c)
			return
		}

		doc := new(T)
		*doc = *existing
		if !isMultipart(c) {
			if err := bindBody(c, doc); err != nil {
				httpError(err, span, c)
				return
			}
		}
		if err := applyOverlay(c, doc); err != nil {
			httpError(err, span, c)
			return
		}
		if m, ok := any(doc).(database.Model); ok {
			m.SetID(id)
		}
		if err := r.write(ctx, c, doc, existing); err != nil {
			httpError(err, span, c)
			return
		}

		set, err := setDocument(doc, r.hooks.ReadOnly...)
		if err != nil {
			httpError(err, span, c)
			return
		}
		span.AddEvent("Updating document")
		updated, err := r.store.UpdateOne(ctx, filter, bson.M{"$set": set})
		if errors.Is(err, database.ErrNotFound) {
			httpError(r.notFound(), span, c)
			return
		}
		if err != nil {
			httpError(err, span, c)
			return
		}
		if r.hooks.AfterWrite != nil {
			if err := r.hooks.AfterWrite(ctx, OpUpdate, updated, existing); err != nil {
				httpError(err, span, c)
				return
			}
		}
		sendData(c, http.StatusOK, updated)
	}
}

func (r *Resource[T]) DeleteOne() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), r.name+"-delete")
		defer func() { span.End() }()

		id, err := objectIDParam(c, "id")
		if err != nil {
			httpError(err, span, c)
			return
		}
		deleted, err := r.store.DeleteOne(ctx, database.ByID(id, r.scope()))
		if errors.Is(err, database.ErrNotFound) {
			httpError(r.notFound(), span, c)
			return
		}
		if err != nil {
			httpError(err, span, c)
			return
		}
		if r.hooks.AfterWrite != nil {
			if err := r.hooks.AfterWrite(ctx, OpDelete, deleted, nil); err != nil {
				httpError(err, span, c)
				return
			}
		}
		c.Status(http.StatusNoContent)
	}
}

func (r *Resource[T]) write(ctx context.Context, c *gin.Context, doc *T, existing *T) error {
	if r.hooks.Fill != nil {
		if err := r.hooks.Fill(c, doc); err != nil {
			return err
		}
	}
	if r.hooks.Prepare != nil {
		if err := r.hooks.Prepare(ctx, doc, existing); err != nil {
			return err
		}
	}
	return models.Validate(doc)
}

// SetOverlay queues fields to apply on top of the request body, such as
// the names of uploaded images.
func SetOverlay(c *gin.Context, fields map[string]any) {
	c.Set(overlayKey, fields)
}

func applyOverlay(c *gin.Context, doc any) error {
	v, ok := c.Get(overlayKey)
	if !ok {
		return nil
	}
	fields, ok := v.(map[string]any)
	if !ok || len(fields) == 0 {
		return nil
	}
	raw, err := bson.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	return bson.Unmarshal(raw, doc)
}

// setDocument is the $set payload for doc, without _id and the skipped
// fields.
func setDocument(doc any, skip ...string) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	delete(set, "_id")
	for _, field := range skip {
		delete(set, field)
	}
	return set, nil
}
