package activity

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mealplan-backend/internal/shared/server/middleware"
	"mealplan-backend/internal/shared/server/respond"
)

// Entitlements resolves a user's plan limits.
type Entitlements interface {
	// WeeklyMealLimit returns the allowance, or NoLimit for unlimited plans.
	WeeklyMealLimit(ctx context.Context, userID string) (int, error)
	// SavedRecipesLimit returns the cap on saved recipes, or NoLimit.
	SavedRecipesLimit(ctx context.Context, userID string) (int, error)
}

// Handler exposes activity endpoints.
type Handler struct {
	Svc   *Service
	Plans Entitlements
}

// NewHandler constructs a Handler. plans may be nil, which disables the
// entitlement check.
func NewHandler(svc *Service, plans Entitlements) *Handler {
	return &Handler{Svc: svc, Plans: plans}
}

// RegisterRoutes attaches user-facing activity routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/activity", h.getActivity)
	rg.POST("/activity", h.createActivity)
	rg.GET("/activity/lookup", h.lookupActivity)
	rg.POST("/activity/reset-check", h.resetCheck)
	rg.POST("/activity/meals", h.incrementMeals)
	rg.POST("/activity/saved-recipes", h.incrementSaved)
	rg.DELETE("/activity/saved-recipes", h.decrementSaved)
}

// RegisterInternalRoutes attaches scheduler-only routes.
func (h *Handler) RegisterInternalRoutes(rg *gin.RouterGroup) {
	rg.POST("/activity/reset", h.runScheduledReset)
}

func (h *Handler) getActivity(c *gin.Context) {
	rec, err := h.Svc.GetActivity(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to fetch activity")
		return
	}
	respond.OK(c, gin.H{"activity": rec})
}

func (h *Handler) createActivity(c *gin.Context) {
	rec, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to create activity")
		return
	}
	respond.OK(c, gin.H{"activity": rec})
}

func (h *Handler) lookupActivity(c *gin.Context) {
	rec, err := h.Svc.Lookup(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to fetch activity")
		return
	}
	respond.OK(c, gin.H{"activity": rec})
}

func (h *Handler) resetCheck(c *gin.Context) {
	rec, reset, err := h.Svc.CheckReset(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to check reset")
		return
	}
	c.Set("resetApplied", reset)
	respond.OK(c, gin.H{"activity": rec, "resetApplied": reset})
}

func (h *Handler) incrementMeals(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserIDFromContext(c)

	limit := NoLimit
	if h.Plans != nil {
		l, err := h.Plans.WeeklyMealLimit(ctx, userID)
		if err != nil {
			respond.Error(c, http.StatusBadGateway, "entitlement_unavailable", "failed to resolve plan entitlement", nil)
			return
		}
		limit = l
	}

	res, err := h.Svc.IncrementMealsGenerated(ctx, userID, limit)
	if err != nil {
		writeError(c, err, "failed to record meal generation")
		return
	}
	c.Set("resetApplied", res.ResetApplied)
	respond.OK(c, gin.H{
		"activity":     res.Record,
		"resetApplied": res.ResetApplied,
		"counted":      res.Counted,
	})
}

func (h *Handler) incrementSaved(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserIDFromContext(c)

	limit := NoLimit
	if h.Plans != nil {
		l, err := h.Plans.SavedRecipesLimit(ctx, userID)
		if err != nil {
			respond.Error(c, http.StatusBadGateway, "entitlement_unavailable", "failed to resolve plan entitlement", nil)
			return
		}
		limit = l
	}

	rec, err := h.Svc.IncrementSavedRecipes(ctx, userID, limit)
	if err != nil {
		writeError(c, err, "failed to update saved recipes")
		return
	}
	respond.OK(c, gin.H{"activity": rec})
}

func (h *Handler) decrementSaved(c *gin.Context) {
	rec, err := h.Svc.DecrementSavedRecipes(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to update saved recipes")
		return
	}
	respond.OK(c, gin.H{"activity": rec})
}

func (h *Handler) runScheduledReset(c *gin.Context) {
	res, err := h.Svc.RunScheduledReset(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to run scheduled reset")
		return
	}
	respond.OK(c, gin.H{
		"usersReset": res.UsersReset,
		"date":       res.Date,
	})
}

func writeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrInvalidUser):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "activity not found", nil)
	case errors.Is(err, ErrSavedRecipesLimitReached):
		respond.Error(c, http.StatusForbidden, "limit_reached", "saved recipe limit reached", []map[string]string{
			{"field": "savedRecipes", "issue": "limit_reached"},
		})
	case errors.Is(err, ErrLimitReached):
		respond.Error(c, http.StatusForbidden, "limit_reached", "weekly meal limit reached", []map[string]string{
			{"field": "weeklyMealsUsed", "issue": "limit_reached"},
		})
	case errors.Is(err, ErrRateLimited):
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later", nil)
	case errors.Is(err, ErrUnknownOutcome):
		respond.Error(c, http.StatusGatewayTimeout, "unknown_outcome", "request timed out, re-fetch activity before retrying", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	case errors.Is(err, ErrStoreUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "store_unavailable", message, nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
	}
}
