package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	var seen []string
	r := NewRouter(engine, WithAPIMiddleware(func(c *gin.Context) {
		seen = append(seen, c.FullPath())
		c.Next()
	}))

	group := NewDomainGroup("test", "/test").
		GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.Register(group).Setup()
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, http.MethodGet, "/api/v1/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
	assert.Equal(t, []string{"/api/v1/test/ping"}, seen, "api middleware must not run outside the versioned group")
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("ledgers", "/ledgers")
		assert.Equal(t, "ledgers", g.Name())
		assert.Equal(t, "/ledgers", g.Prefix())
	})

	t.Run("methods and group middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("notifications", "/notifications").
			Use(func(c *gin.Context) {
				c.Header("X-Group", "notifications")
				c.Next()
			}).
			GET("/pending", func(c *gin.Context) { c.Status(http.StatusOK) }).
			POST("/pending", func(c *gin.Context) { c.Status(http.StatusCreated) }).
			DELETE("/pending/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := serve(engine, http.MethodGet, "/api/v1/notifications/pending")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "notifications", w.Header().Get("X-Group"))
		assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/notifications/pending").Code)
		assert.Equal(t, "abc", serve(engine, http.MethodDelete, "/api/v1/notifications/pending/abc").Body.String())
	})

	t.Run("subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("ledgers", "/ledgers")
		g.Group("reports", "/reports").
			GET("/drift", func(c *gin.Context) { c.String(http.StatusOK, "drift") })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := serve(engine, http.MethodGet, "/api/v1/ledgers/reports/drift")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "drift", w.Body.String())
	})
}
