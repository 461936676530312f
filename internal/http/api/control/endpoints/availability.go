package endpoints

import (
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/api"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/api/control/packets"
	"github.com/Nixie-Tech-LLC/troupe/internal/ledger"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

type AvailabilityController struct {
	store  db.Store
	ledger *ledger.Ledger
}

func NewAvailabilityController(store db.Store, l *ledger.Ledger) *AvailabilityController {
	return &AvailabilityController{store: store, ledger: l}
}

func AvailabilityModule(store db.Store, l *ledger.Ledger) api.Module {
	ctl := NewAvailabilityController(store, l)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/availability", ctl.getAvailability)
		c.PUT("/availability/:date", ctl.setAvailability)
		c.DELETE("/availability/:date", ctl.deleteAvailability)

		c.GET("/projects/:id/availability", ctl.projectAvailability)
	})
}

func parseDate(raw, name string) (civil.Date, *api.APIError) {
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, api.BadRequest("invalid " + name + ": expected YYYY-MM-DD")
	}
	return d, nil
}

// dateWindow reads from/to; to defaults to from.
func dateWindow(ctx *gin.Context) (civil.Date, civil.Date, *api.APIError) {
	from, apiErr := parseDate(ctx.Query("from"), "from")
	if apiErr != nil {
		return from, from, apiErr
	}
	if ctx.Query("to") == "" {
		return from, from, nil
	}
	to, apiErr := parseDate(ctx.Query("to"), "to")
	return from, to, apiErr
}

func queryBool(ctx *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(ctx.Query(name))
	return v
}

func (a *AvailabilityController) getAvailability(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	from, to, apiErr := dateWindow(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	days, err := a.ledger.GetRange(ctx.Request.Context(), user.ID, from, to, ledger.Options{
		IncludeImported: queryBool(ctx, "include_imported"),
		WithSlots:       queryBool(ctx, "slots"),
	})
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return days, nil
}

func (a *AvailabilityController) setAvailability(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	date, apiErr := parseDate(ctx.Param("date"), "date")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.SetAvailabilityRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	if _, err := a.ledger.SetManual(ctx.Request.Context(), user.ID, date, request.Ranges); err != nil {
		return nil, api.ErrorFrom(err)
	}
	days, err := a.ledger.GetRange(ctx.Request.Context(), user.ID, date, date, ledger.Options{})
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return days[0], nil
}

func (a *AvailabilityController) deleteAvailability(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	date, apiErr := parseDate(ctx.Param("date"), "date")
	if apiErr != nil {
		return nil, apiErr
	}
	n, err := a.ledger.DeleteManual(ctx.Request.Context(), user.ID, date)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return gin.H{"deleted": n}, nil
}

func (a *AvailabilityController) projectAvailability(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := ctx.Param("id")
	if _, apiErr := membership(ctx, a.store, id, user.ID); apiErr != nil {
		return nil, apiErr
	}
	from, to, apiErr := dateWindow(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	view, err := a.ledger.ProjectAvailability(ctx.Request.Context(), id, from, to)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return view, nil
}
