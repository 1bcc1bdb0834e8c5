package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncActivityResetByPath(t *testing.T) {
	before := testutil.ToFloat64(activityResets.WithLabelValues(ResetPathPerUser))
	IncActivityReset(ResetPathPerUser)
	after := testutil.ToFloat64(activityResets.WithLabelValues(ResetPathPerUser))
	if after-before != 1 {
		t.Fatalf("expected per_user resets to grow by 1, got %v", after-before)
	}
}

func TestAddBatchResetUsersSkipsZero(t *testing.T) {
	before := testutil.ToFloat64(activityResets.WithLabelValues(ResetPathBatch))
	AddBatchResetUsers(0)
	AddBatchResetUsers(4)
	after := testutil.ToFloat64(activityResets.WithLabelValues(ResetPathBatch))
	if after-before != 4 {
		t.Fatalf("expected batch resets to grow by 4, got %v", after-before)
	}
	if testutil.ToFloat64(lastBatchReset) == 0 {
		t.Fatalf("expected last batch reset timestamp to be set")
	}
}

func TestHandlerServesPrometheusText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncMealsGenerated()

	r := gin.New()
	r.GET("/metrics", Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "mealplan_activity_meals_generated_total") {
		t.Fatalf("expected meals counter in output")
	}
}
