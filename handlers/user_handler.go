package handlers

import (
	"net/http"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/middleware"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/opentelemetry"
	"github.com/AgiriTaofeek/natours-app/query"
	"github.com/AgiriTaofeek/natours-app/services"
	"github.com/AgiriTaofeek/natours-app/uploads"
	"github.com/gin-gonic/gin"
)

var userSchema = query.Schema{
	"name":  {Kind: query.String},
	"email": {Kind: query.String},
	"role":  {Kind: query.String, Multi: true},
}

type UserHandler struct {
	*Resource[models.User]
	users  *services.UserService
	images *uploads.Processor
}

func NewUserHandler(store database.Collection[models.User], users *services.UserService, images *uploads.Processor) *UserHandler {
	return &UserHandler{
		Resource: NewResource("users", store, models.ActiveUsers, userSchema, Hooks[models.User]{
			Prepare: users.Prepare,
		}),
		users:    users,
		images:   images,
	}
}

// GetMe points the read-one route at the signed-in user.
func (h *UserHandler) GetMe(c *gin.Context) {
	c.Params = append(c.Params, gin.Param{Key: "id", Value: middleware.CurrentUser(c).ID.Hex()})
	c.Next()
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "users-update-me")
	defer func() { span.End() }()

	user := middleware.CurrentUser(c)
	var in services.ProfileUpdate

	if isMultipart(c) {
		if c.PostForm("password") != "" || c.PostForm("passwordConfirm") != "" {
			httpError(errPasswordRoute(), span, c)
			return
		}
		if name, ok := c.GetPostForm("name"); ok {
			in.Name = &name
		}
		if email, ok := c.GetPostForm("email"); ok {
			in.Email = &email
		}
		if fh, err := c.FormFile("photo"); err == nil {
			photo, err := h.images.SaveUserPhoto(fh, user.ID.Hex())
			if err != nil {
				httpError(err, span, c)
				return
			}
			in.Photo = &photo
		}
	} else {
		body := map[string]any{}
		if err := bindBody(c, &body); err != nil {
			httpError(err, span, c)
			return
		}
		if _, ok := body["password"]; ok {
			httpError(errPasswordRoute(), span, c)
			return
		}
		if _, ok := body["passwordConfirm"]; ok {
			httpError(errPasswordRoute(), span, c)
			return
		}
		in.Name = stringField(body, "name")
		in.Email = stringField(body, "email")
	}

	updated, err := h.users.UpdateMe(ctx, user.ID, in)
	if err != nil {
		httpError(err, span, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "data": gin.H{"user": updated}})
}

func (h *UserHandler) DeleteMe(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "users-delete-me")
	defer func() { span.End() }()

	if err := h.users.Deactivate(ctx, middleware.CurrentUser(c).ID); err != nil {
		httpError(err, span, c)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateUser is not supported; accounts are made through signup.
func (h *UserHandler) CreateUser(c *gin.Context) {
	middleware.Fail(c, apperror.New(http.StatusInternalServerError, "This route is not defined! Please use /signup instead"))
}

func errPasswordRoute() error {
	return apperror.BadRequest("This route is not for password updates. Please use /updateMyPassword.")
}

func stringField(body map[string]any, key string) *string {
	if s, ok := body[key].(string); ok {
		return &s
	}
	return nil
}
