package plans

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mealplan-backend/internal/activity"
	"mealplan-backend/internal/shared/server/middleware"
	"mealplan-backend/internal/shared/server/respond"
)

// Handler exposes the caller's entitlement alongside current usage.
type Handler struct {
	Provider Provider
	Activity *activity.Service
}

func NewHandler(provider Provider, svc *activity.Service) *Handler {
	return &Handler{Provider: provider, Activity: svc}
}

// RegisterRoutes attaches plan routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/plans/entitlement", h.getEntitlement)
}

func (h *Handler) getEntitlement(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
		return
	}

	e, err := h.Provider.Entitlement(ctx, userID)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "entitlement_unavailable", "failed to resolve plan entitlement", nil)
		return
	}

	payload := gin.H{"entitlement": e}
	if h.Activity != nil {
		rec, err := h.Activity.GetActivity(ctx, userID)
		if err != nil {
			respond.Error(c, http.StatusServiceUnavailable, "store_unavailable", "failed to fetch activity", nil)
			return
		}
		payload["weeklyMealsUsed"] = rec.WeeklyMealsUsed
		payload["remaining"] = e.Remaining(rec.WeeklyMealsUsed)
		payload["canGenerate"] = e.Allows(rec.WeeklyMealsUsed)
		payload["canSaveRecipe"] = rec.SavedRecipes < e.SavedLimit()
		payload["weeklyResetDate"] = rec.WeeklyResetDate
	}
	respond.OK(c, payload)
}
