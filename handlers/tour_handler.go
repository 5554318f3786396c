package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/opentelemetry"
	"github.com/AgiriTaofeek/natours-app/query"
	"github.com/AgiriTaofeek/natours-app/services"
	"github.com/AgiriTaofeek/natours-app/uploads"
	"github.com/gin-gonic/gin"
)

var tourSchema = query.Schema{
	"name":            {Kind: query.String},
	"slug":            {Kind: query.String},
	"duration":        {Kind: query.Number, Multi: true},
	"maxGroupSize":    {Kind: query.Number, Multi: true},
	"difficulty":      {Kind: query.String, Multi: true},
	"ratingsAverage":  {Kind: query.Number, Multi: true},
	"ratingsQuantity": {Kind: query.Number, Multi: true},
	"price":           {Kind: query.Number, Multi: true},
	"priceDiscount":   {Kind: query.Number},
	"secretTour":      {Kind: query.Bool},
	"startDates":      {Kind: query.Date},
	"createdAt":       {Kind: query.Date},
	"guides":          {Kind: query.ObjectID},
}

type TourHandler struct {
	*Resource[models.Tour]
	tours  *services.TourService
	images *uploads.Processor
}

// tourDerivedFields are never written by a tour update: the ratings are
// recomputed from reviews and createdAt is set once.
var tourDerivedFields = []string{"ratingsAverage", "ratingsQuantity", "createdAt"}

func NewTourHandler(store database.Collection[models.Tour], tours *services.TourService, images *uploads.Processor) *TourHandler {
	return &TourHandler{
		Resource: NewResource("tours", store, models.VisibleTours, tourSchema, Hooks[models.Tour]{
			Prepare:     tours.Prepare,
			Expand:      tours.PopulateGuides,
			PopulateOne: tours.PopulateDetail,
			ReadOnly:    tourDerivedFields,
		}),
		tours:  tours,
		images: images,
	}
}

// AliasTopTours rewrites the query to the five best rated, cheapest tours.
func (h *TourHandler) AliasTopTours(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("limit", "5")
	q.Set("sort", "-ratingsAverage,price")
	q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	c.Request.URL.RawQuery = q.Encode()
	c.Next()
}

// UploadTourImages resizes a multipart imageCover and images and queues
// their file names for the update.
func (h *TourHandler) UploadTourImages(c *gin.Context) {
	if !isMultipart(c) {
		c.Next()
		return
	}
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "tours-upload-images")
	defer func() { span.End() }()

	form, err := c.MultipartForm()
	if err != nil {
		httpError(apperror.BadRequest("Invalid multipart form."), span, c)
		return
	}
	cover := firstFile(form.File["imageCover"])
	gallery := form.File["images"]
	if cover == nil && len(gallery) == 0 {
		c.Next()
		return
	}
	if len(gallery) > uploads.MaxTourImages {
		httpError(apperror.BadRequest("Too many images. A tour can have at most 3 images."), span, c)
		return
	}

	coverName, names, err := h.images.SaveTourImages(ctx, cover, gallery, c.Param("id"))
	if err != nil {
		httpError(err, span, c)
		return
	}
	overlay := map[string]any{}
	if coverName != "" {
		overlay["imageCover"] = coverName
	}
	if len(names) > 0 {
		overlay["images"] = names
	}
	SetOverlay(c, overlay)
	c.Next()
}

func (h *TourHandler) GetTourStats(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "tours-stats")
	defer func() { span.End() }()

	stats, err := h.tours.Stats(ctx)
	if err != nil {
		httpError(err, span, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "data": gin.H{"stats": stats}})
}

func (h *TourHandler) GetMonthlyPlan(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "tours-monthly-plan")
	defer func() { span.End() }()

	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		httpError(apperror.BadRequest("Invalid year: "+c.Param("year")+"."), span, c)
		return
	}
	plan, err := h.tours.MonthlyPlan(ctx, year)
	if err != nil {
		httpError(err, span, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "data": gin.H{"plan": plan}})
}

// GetToursWithin serves /tours-within/:distance/center/:latlng/unit/:unit.
func (h *TourHandler) GetToursWithin(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "tours-within")
	defer func() { span.End() }()

	lat, lng, err := parseLatLng(c.Param("latlng"))
	if err != nil {
		httpError(err, span, c)
		return
	}
	distance, err := strconv.ParseFloat(c.Param("distance"), 64)
	if err != nil || distance < 0 {
		httpError(apperror.BadRequest("Invalid distance: "+c.Param("distance")+"."), span, c)
		return
	}
	tours, err := h.tours.Within(ctx, distance, lat, lng, c.Param("unit"))
	if err != nil {
		httpError(err, span, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"results": len(tours),
		"data":    gin.H{"data": tours},
	})
}

// GetDistances serves /distances/:latlng/unit/:unit.
func (h *TourHandler) GetDistances(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "tours-distances")
	defer func() { span.End() }()

	lat, lng, err := parseLatLng(c.Param("latlng"))
	if err != nil {
		httpError(err, span, c)
		return
	}
	distances, err := h.tours.Distances(ctx, lat, lng, c.Param("unit"))
	if err != nil {
		httpError(err, span, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "data": gin.H{"data": distances}})
}

func firstFile(files []*multipart.FileHeader) *multipart.FileHeader {
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

func parseLatLng(raw string) (float64, float64, error) {
	bad := apperror.BadRequest("Please provide latitude and longitude in the format lat,lng.")
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, bad
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, bad
	}
	return lat, lng, nil
}
