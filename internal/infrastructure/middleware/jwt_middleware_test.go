package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tutor_chat_server/pkg/enum/user_role_enum"
	"tutor_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	jwt.Init("test-secret", 15, 24)
	r := gin.New()
	r.GET("/me", JWTAuth(), func(c *gin.Context) {
		ident, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, ident.UserId+"|"+ident.Role.String()+"|"+ident.Nickname)
	})
	return r
}

func serve(r *gin.Engine, target, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthAcceptsHeaderAndQuery(t *testing.T) {
	r := newEngine()
	token, err := jwt.GenerateAccessToken("T1", "Teacher", "Ms Li")
	if err != nil {
		t.Fatal(err)
	}

	w := serve(r, "/me", "Bearer "+token)
	if w.Code != http.StatusOK || w.Body.String() != "T1|teacher|Ms Li" {
		t.Fatalf("header: %d %q", w.Code, w.Body.String())
	}
	w = serve(r, "/me?token="+token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("query: %d %q", w.Code, w.Body.String())
	}
}

func TestJWTAuthRejects(t *testing.T) {
	r := newEngine()
	refresh, _, err := jwt.GenerateRefreshToken("T1", "teacher", "")
	if err != nil {
		t.Fatal(err)
	}
	unknownRole, err := jwt.GenerateAccessToken("X1", "janitor", "")
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"missing":       "",
		"not bearer":    "Token abc",
		"garbage":       "Bearer abc.def.ghi",
		"refresh token": "Bearer " + refresh,
		"unknown role":  "Bearer " + unknownRole,
	}
	for name, header := range cases {
		if w := serve(r, "/me", header); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status=%d", name, w.Code)
		}
	}
}

func TestIdentityFromWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := IdentityFrom(c); ok {
		t.Fatal("expected no identity")
	}
	c.Set(CtxUserId, "P1")
	c.Set(CtxRole, user_role_enum.Parent)
	ident, ok := IdentityFrom(c)
	if !ok || ident.Role != user_role_enum.Parent {
		t.Fatalf("got %+v %v", ident, ok)
	}
}
