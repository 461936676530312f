package endpoints

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/api"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/api/auth/packets"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
	"github.com/Nixie-Tech-LLC/troupe/internal/tz"
)

type AccountManager struct {
	jwtSecret   string
	tokenTTL    time.Duration
	defaultZone string
	store       db.Store
}

func accountManagementController(secret string, ttl time.Duration, defaultZone string, store db.Store) *AccountManager {
	return &AccountManager{jwtSecret: secret, tokenTTL: ttl, defaultZone: defaultZone, store: store}
}

// AuthPublicModule mounts signup and login.
func AuthPublicModule(secret string, ttl time.Duration, store db.Store) api.Module {
	ctl := accountManagementController(secret, ttl, "", store)
	return api.ModuleFunc(func(c *api.Controller) {
		c.Public(http.MethodPost, "/auth/signup", ctl.userSignup)
		c.Public(http.MethodPost, "/auth/login", ctl.userLogin)
	})
}

// AuthSessionModule mounts the profile endpoints behind auth.
func AuthSessionModule(store db.Store, defaultZone string) api.Module {
	ctl := accountManagementController("", 0, defaultZone, store)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/auth/current_profile", ctl.getCurrentProfile)
		c.PUT("/auth/current_profile", ctl.updateCurrentProfile)
	})
}

func validZone(name string) *api.APIError {
	if name == "" {
		return nil
	}
	if _, err := tz.LoadZone(name); err != nil {
		return api.ErrorFrom(err)
	}
	return nil
}

// POST /api/auth/signup
func (a *AccountManager) userSignup(c *gin.Context) (any, *api.APIError) {
	var request packets.SignupRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if apiErr := validZone(request.Timezone); apiErr != nil {
		return nil, apiErr
	}

	hashed, err := middleware.HashPassword(request.Password)
	if err != nil {
		log.Error().Err(err).Str("email", request.Email).Msg("hashing password failed")
		return nil, api.ErrorFrom(err)
	}

	user := &model.User{
		Email:          strings.ToLower(request.Email),
		HashedPassword: hashed,
		Name:           request.Name,
		Timezone:       request.Timezone,
	}
	if err := a.store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, &api.APIError{Code: http.StatusConflict, Message: "Email already registered, please sign up with a different email"}
		}
		return nil, api.ErrorFrom(err)
	}

	token, err := middleware.GenerateJWT(user.ID, a.jwtSecret, a.tokenTTL)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("could not generate JWT")
		return nil, api.ErrorFrom(err)
	}
	return api.Status{Code: http.StatusCreated, Body: packets.TokenResponse{Token: token}}, nil
}

// POST /api/auth/login
func (a *AccountManager) userLogin(c *gin.Context) (any, *api.APIError) {
	var request packets.LoginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	user, err := a.store.GetUserByEmail(c.Request.Context(), strings.ToLower(request.Email))
	if err != nil || !middleware.CheckPassword(user.HashedPassword, request.Password) {
		log.Info().Str("email", request.Email).Msg("login failed")
		return nil, &api.APIError{Code: http.StatusUnauthorized, Message: middleware.ErrInvalidCredentials.Error()}
	}

	token, err := middleware.GenerateJWT(user.ID, a.jwtSecret, a.tokenTTL)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("could not generate JWT")
		return nil, api.ErrorFrom(err)
	}
	return packets.TokenResponse{Token: token}, nil
}

func (a *AccountManager) profile(u *model.User) packets.ProfileResponse {
	zone := u.Timezone
	if zone == "" {
		zone = a.defaultZone
	}
	return packets.ProfileResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Timezone:  zone,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// GET /api/auth/current_profile
func (a *AccountManager) getCurrentProfile(c *gin.Context, user *model.User) (any, *api.APIError) {
	return a.profile(user), nil
}

// PUT /api/auth/current_profile
func (a *AccountManager) updateCurrentProfile(c *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.UpdateCurrentProfileRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if apiErr := validZone(request.Timezone); apiErr != nil {
		return nil, apiErr
	}

	email := strings.ToLower(request.Email)
	if err := a.store.UpdateUserProfile(c.Request.Context(), user.ID, email, request.Name, request.Timezone); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, &api.APIError{Code: http.StatusConflict, Message: "Email already registered"}
		}
		return nil, api.ErrorFrom(err)
	}

	updated, err := a.store.GetUserByID(c.Request.Context(), user.ID)
	if err != nil {
		return nil, api.ErrorFrom(err)
	}
	return a.profile(updated), nil
}
