package endpoints

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/api"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/api/control/packets"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
	"github.com/Nixie-Tech-LLC/troupe/internal/rehearsal"
	"github.com/Nixie-Tech-LLC/troupe/internal/tz"
)

type ProjectController struct {
	store       db.Store
	rehearsals  *rehearsal.Service
	defaultZone string
}

func NewProjectController(store db.Store, rehearsals *rehearsal.Service, defaultZone string) *ProjectController {
	return &ProjectController{store: store, rehearsals: rehearsals, defaultZone: defaultZone}
}

func ProjectModule(store db.Store, rehearsals *rehearsal.Service, defaultZone string) api.Module {
	ctl := NewProjectController(store, rehearsals, defaultZone)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/projects", ctl.listProjects)
		c.POST("/projects", ctl.createProject)
		c.GET("/projects/:id", ctl.getProject)

		// roster
		c.GET("/projects/:id/members", ctl.listMembers)
		c.POST("/projects/:id/members", ctl.addMember)
		c.PUT("/projects/:id/members/:user_id", ctl.updateMember)
	})
}

// membership loads the caller's membership, hiding projects they are not in.
func membership(ctx *gin.Context, store db.Store, projectID, userID string) (*model.ProjectMembership, *api.APIError) {
	if _, err := store.GetProject(ctx.Request.Context(), projectID); err != nil {
		return nil, api.ErrorFrom(err)
	}
	m, err := store.GetMembership(ctx.Request.Context(), projectID, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, api.ErrorFrom(model.ErrForbidden)
	}
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return m, nil
}

func (p *ProjectController) listProjects(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	list, err := p.store.ListProjectsForUser(ctx.Request.Context(), user.ID)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	response := make([]packets.ProjectResponse, 0, len(list))
	for i := range list {
		response = append(response, packets.NewProjectResponse(&list[i]))
	}
	return response, nil
}

func (p *ProjectController) createProject(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateProjectRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	zone := request.Timezone
	if zone == "" {
		zone = p.defaultZone
	}
	if _, err := tz.LoadZone(zone); err != nil {
		return nil, api.ErrorFrom(err)
	}

	project := &model.Project{Name: request.Name, Timezone: zone, CreatedBy: user.ID}
	if err := p.store.CreateProject(ctx.Request.Context(), project); err != nil {
		return nil, api.ErrorFrom(err)
	}
	log.Info().Str("project_id", project.ID).Str("user_id", user.ID).Msg("project created")
	return api.Status{Code: http.StatusCreated, Body: packets.NewProjectResponse(project)}, nil
}

func (p *ProjectController) getProject(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := ctx.Param("id")
	if _, apiErr := membership(ctx, p.store, id, user.ID); apiErr != nil {
		return nil, apiErr
	}
	project, err := p.store.GetProject(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return packets.NewProjectResponse(project), nil
}

func (p *ProjectController) listMembers(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := ctx.Param("id")
	if _, apiErr := membership(ctx, p.store, id, user.ID); apiErr != nil {
		return nil, apiErr
	}
	members, err := p.store.ListMembers(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	response := make([]packets.MemberResponse, 0, len(members))
	for _, m := range members {
		response = append(response, packets.NewMemberResponse(m))
	}
	return response, nil
}

func (p *ProjectController) addMember(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := ctx.Param("id")
	caller, apiErr := membership(ctx, p.store, id, user.ID)
	if apiErr != nil {
		return nil, apiErr
	}
	if caller.Role != model.RoleOwner || !caller.Active() {
		return nil, api.ErrorFrom(model.ErrForbidden)
	}

	var request packets.AddMemberRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	var (
		target *model.User
		err    error
	)
	switch {
	case request.UserID != "":
		target, err = p.store.GetUserByID(ctx.Request.Context(), request.UserID)
	case request.Email != "":
		target, err = p.store.GetUserByEmail(ctx.Request.Context(), request.Email)
	default:
		return nil, api.BadRequest("email or user_id is required")
	}
	if err != nil {
		return nil, api.ErrorFrom(err)
	}

	role := model.RoleMember
	if request.Role != "" {
		role = model.MemberRole(request.Role)
	}
	m := &model.ProjectMembership{ProjectID: id, UserID: target.ID, Role: role, Status: model.MembershipActive}
	if err := p.store.UpsertMembership(ctx.Request.Context(), m); err != nil {
		return nil, api.ErrorFrom(err)
	}
	p.rosterChanged(ctx, id)
	return api.Status{Code: http.StatusCreated, Body: packets.NewMemberResponse(*m)}, nil
}

// updateMember changes a member's status. Owners may change anyone, other
// members only themselves and never their role.
func (p *ProjectController) updateMember(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, targetID := ctx.Param("id"), ctx.Param("user_id")
	caller, apiErr := membership(ctx, p.store, id, user.ID)
	if apiErr != nil {
		return nil, apiErr
	}

	var request packets.UpdateMemberRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	isOwner := caller.Role == model.RoleOwner && caller.Active()
	if !isOwner && (targetID != user.ID || request.Role != "") {
		return nil, api.ErrorFrom(model.ErrForbidden)
	}

	existing, err := p.store.GetMembership(ctx.Request.Context(), id, targetID)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	existing.Status = model.MembershipStatus(request.Status)
	if request.Role != "" {
		existing.Role = model.MemberRole(request.Role)
	}
	if err := p.store.UpsertMembership(ctx.Request.Context(), existing); err != nil {
		return nil, api.ErrorFrom(err)
	}
	p.rosterChanged(ctx, id)
	return packets.NewMemberResponse(*existing), nil
}

// rosterChanged rebooks upcoming rehearsals. Failures stay recorded on the
// rehearsals for the reconciler, so the membership change still succeeds.
func (p *ProjectController) rosterChanged(ctx *gin.Context, projectID string) {
	if err := p.rehearsals.RosterChanged(ctx.Request.Context(), projectID); err != nil {
		log.Warn().Err(err).Str("project_id", projectID).Msg("rebooking after roster change failed")
	}
}
