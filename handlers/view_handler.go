package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/middleware"
	"github.com/AgiriTaofeek/natours-app/opentelemetry"
	"github.com/AgiriTaofeek/natours-app/services"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const alertKey = "alert"

const bookingAlert = "Your booking was successful! Please check your email for a confirmation. " +
	"If your booking doesn't show up here immediately, please come back later."

// TemplateFuncs are the helpers available to page templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"firstName": func(name string) string {
			if i := strings.IndexByte(name, ' '); i > 0 {
				return name[:i]
			}
			return name
		},
		"title": func(v any) string {
			return cases.Title(language.English).String(fmt.Sprint(v))
		},
		"monthYear": func(t time.Time) string {
			return t.Format("January 2006")
		},
		"toJSON": func(v any) (string, error) {
			raw, err := json.Marshal(v)
			return string(raw), err
		},
		"add": func(a, b int) int { return a + b },
	}
}

type ViewHandler struct {
	tours    *services.TourService
	bookings *services.BookingService
	users    *services.UserService
}

func NewViewHandler(tours *services.TourService, bookings *services.BookingService, users *services.UserService) *ViewHandler {
	return &ViewHandler{tours: tours, bookings: bookings, users: users}
}

func (h *ViewHandler) render(c *gin.Context, name string, data gin.H) {
	data["user"] = middleware.CurrentUser(c)
	if alert := c.GetString(alertKey); alert != "" {
		data["alert"] = alert
	}
	c.HTML(http.StatusOK, name, data)
}

// Alerts turns ?alert=booking into a banner message.
func Alerts(c *gin.Context) {
	if c.Query("alert") == "booking" {
		c.Set(alertKey, bookingAlert)
	}
	c.Next()
}

func (h *ViewHandler) Overview(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "views-overview")
	defer func() { span.End() }()

	tours, err := h.tours.Visible(ctx)
	if err != nil {
		httpError(err, span, c)
		return
	}
	h.render(c, "overview.html", gin.H{"title": "All Tours", "tours": tours})
}

func (h *ViewHandler) Tour(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "views-tour")
	defer func() { span.End() }()

	tour, err := h.tours.BySlug(ctx, c.Param("slug"))
	if errors.Is(err, database.ErrNotFound) {
		httpError(apperror.NotFound("There is no tour with that name."), span, c)
		return
	}
	if err != nil {
		httpError(err, span, c)
		return
	}
	h.render(c, "tour.html", gin.H{"title": tour.Name + " Tour", "tour": tour})
}

func (h *ViewHandler) Login(c *gin.Context) {
	h.render(c, "login.html", gin.H{"title": "Log into your account"})
}

func (h *ViewHandler) Signup(c *gin.Context) {
	h.render(c, "signup.html", gin.H{"title": "Create your account"})
}

func (h *ViewHandler) Account(c *gin.Context) {
	h.render(c, "account.html", gin.H{"title": "Your account"})
}

func (h *ViewHandler) MyTours(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "views-my-tours")
	defer func() { span.End() }()

	ids, err := h.bookings.BookedTourIDs(ctx, middleware.CurrentUser(c).ID)
	if err != nil {
		httpError(err, span, c)
		return
	}
	tours, err := h.tours.ByIDs(ctx, ids)
	if err != nil {
		httpError(err, span, c)
		return
	}
	h.render(c, "overview.html", gin.H{"title": "My Tours", "tours": tours})
}

// SubmitUserData handles the account page form post.
func (h *ViewHandler) SubmitUserData(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "views-submit-user-data")
	defer func() { span.End() }()

	name := c.PostForm("name")
	email := c.PostForm("email")
	updated, err := h.users.UpdateMe(ctx, middleware.CurrentUser(c).ID, services.ProfileUpdate{Name: &name, Email: &email})
	if err != nil {
		httpError(err, span, c)
		return
	}
	middleware.SetUser(c, updated)
	h.render(c, "account.html", gin.H{"title": "Your account"})
}
