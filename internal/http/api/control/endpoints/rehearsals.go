package endpoints

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/troupe/internal/http/api"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/api/control/packets"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
	"github.com/Nixie-Tech-LLC/troupe/internal/rehearsal"
)

type RehearsalController struct {
	service *rehearsal.Service
}

func NewRehearsalController(service *rehearsal.Service) *RehearsalController {
	return &RehearsalController{service: service}
}

func RehearsalModule(service *rehearsal.Service) api.Module {
	ctl := NewRehearsalController(service)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/projects/:id/rehearsals", ctl.listRehearsals)
		c.POST("/projects/:id/rehearsals", ctl.createRehearsal)

		c.GET("/rehearsals/:id", ctl.getRehearsal)
		c.PUT("/rehearsals/:id", ctl.updateRehearsal)
		c.DELETE("/rehearsals/:id", ctl.deleteRehearsal)
		// manual retry after a partial failure
		c.POST("/rehearsals/:id/sync", ctl.resyncRehearsal)

		// RSVPs
		c.PUT("/rehearsals/:id/response", ctl.respond)
		c.GET("/rehearsals/:id/responses", ctl.listResponses)
	})
}

// parseInstant reads an optional RFC 3339 query parameter.
func parseInstant(ctx *gin.Context, name string) (time.Time, *api.APIError) {
	raw := ctx.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, api.BadRequest("invalid " + name + ": expected RFC 3339")
	}
	return t, nil
}

// withSync shapes a mutation result. A partial failure still reports the
// error; the rehearsal itself was saved and will be retried.
func withSync(r *model.Rehearsal, res rehearsal.SyncResult, err error, status int) (any, *api.APIError) {
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return api.Status{Code: status, Body: packets.RehearsalSyncResponse{
		Rehearsal: packets.NewRehearsalResponse(r),
		Sync:      packets.NewSyncResponse(res),
	}}, nil
}

func (r *RehearsalController) listRehearsals(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	from, apiErr := parseInstant(ctx, "from")
	if apiErr != nil {
		return nil, apiErr
	}
	to, apiErr := parseInstant(ctx, "to")
	if apiErr != nil {
		return nil, apiErr
	}

	list, err := r.service.List(ctx.Request.Context(), user.ID, ctx.Param("id"), from, to)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	response := make([]packets.RehearsalResponse, 0, len(list))
	for i := range list {
		response = append(response, packets.NewRehearsalResponse(&list[i]))
	}
	return response, nil
}

func (r *RehearsalController) createRehearsal(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateRehearsalRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	created, res, err := r.service.Create(ctx.Request.Context(), user.ID, ctx.Param("id"), rehearsal.Draft{
		Title:    request.Title,
		Location: request.Location,
		StartsAt: request.StartsAt,
		EndsAt:   request.EndsAt,
	})
	return withSync(created, res, err, http.StatusCreated)
}

func (r *RehearsalController) getRehearsal(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	found, err := r.service.Get(ctx.Request.Context(), user.ID, ctx.Param("id"))
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return packets.NewRehearsalResponse(found), nil
}

func (r *RehearsalController) updateRehearsal(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.UpdateRehearsalRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	updated, res, err := r.service.Update(ctx.Request.Context(), user.ID, ctx.Param("id"), rehearsal.Patch{
		Title:    request.Title,
		Location: request.Location,
		StartsAt: request.StartsAt,
		EndsAt:   request.EndsAt,
	})
	return withSync(updated, res, err, http.StatusOK)
}

func (r *RehearsalController) deleteRehearsal(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	res, err := r.service.Delete(ctx.Request.Context(), user.ID, ctx.Param("id"))
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return gin.H{"message": "deleted", "removed": res.Removed}, nil
}

func (r *RehearsalController) resyncRehearsal(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := ctx.Param("id")
	res, err := r.service.Resync(ctx.Request.Context(), user.ID, id)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return packets.NewSyncResponse(res), nil
}

func (r *RehearsalController) respond(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.RespondRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	resp, err := r.service.Respond(ctx.Request.Context(), user.ID, ctx.Param("id"), model.ResponseStatus(request.Status), request.Note)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return packets.NewResponseResponse(*resp), nil
}

func (r *RehearsalController) listResponses(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	list, err := r.service.Responses(ctx.Request.Context(), user.ID, ctx.Param("id"))
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	response := make([]packets.ResponseResponse, 0, len(list))
	for _, it := range list {
		response = append(response, packets.NewResponseResponse(it))
	}
	return response, nil
}
