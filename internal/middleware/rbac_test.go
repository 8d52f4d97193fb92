package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/scolaris/emploi-api/internal/models"
)

func runRBAC(t *testing.T, claims *models.JWTClaims, paramID string, allowed ...string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/teachers/"+paramID+"/slots/day", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: paramID}}
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}

	passed := false
	RBAC(allowed...)(c)
	if !c.IsAborted() {
		passed = true
	}
	return w, passed
}

func TestRBACAllowsListedRole(t *testing.T) {
	_, passed := runRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, "teacher-1", "ADMIN", "SELF")
	assert.True(t, passed)
}

func TestRBACAllowsSelfMatch(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u2", Role: models.RoleTeacher, TeacherID: "teacher-1"}
	_, passed := runRBAC(t, claims, "teacher-1", "ADMIN", "SELF")
	assert.True(t, passed)
}

func TestRBACForbidsOtherTeacher(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u2", Role: models.RoleTeacher, TeacherID: "teacher-2"}
	w, passed := runRBAC(t, claims, "teacher-1", "ADMIN", "SELF")
	assert.False(t, passed)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACForbidsRoleNotListed(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u2", Role: models.RoleTeacher}
	w, passed := runRBAC(t, claims, "teacher-1", "ADMIN")
	assert.False(t, passed)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	w, passed := runRBAC(t, nil, "teacher-1", "ADMIN")
	assert.False(t, passed)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
