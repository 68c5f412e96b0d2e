package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TSherpa10/moodzy/health"
	"github.com/TSherpa10/moodzy/registry"
)

type createUserRequest struct {
	Name   string `json:"name" binding:"required,max=256"`
	Mood   string `json:"mood" binding:"required,max=64"`
	IsReal *bool  `json:"isReal"`
}

type patchUserRequest struct {
	Name *string `json:"name" binding:"omitempty,max=256"`
	Mood *string `json:"mood" binding:"omitempty,max=64"`
}

type clearResponse struct {
	Cleared int `json:"cleared"`
}

func (g *Gateway) routes() *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), g.observe(), g.cors(), throttle(g.limiter), g.limitBody())

	r.GET("/", g.hello)
	r.GET("/health", g.healthCheck)

	users := r.Group("/users")
	{
		users.GET("", g.listUsers)
		users.POST("", g.createUser)
		users.DELETE("", g.clearUsers)
		users.PATCH("/:id", g.updateUser)
		users.DELETE("/:id", g.deleteUser)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Message: "route not found"})
	})
	return r
}

// storeContext bounds one store call.
func (g *Gateway) storeContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), g.config.RequestTimeout)
}

func (g *Gateway) hello(c *gin.Context) {
	c.String(http.StatusOK, "Hello World!")
}

func (g *Gateway) listUsers(c *gin.Context) {
	ctx, cancel := g.storeContext(c)
	defer cancel()

	users, err := g.store.List(ctx)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (g *Gateway) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.writeError(c, bindError(err))
		return
	}

	ctx, cancel := g.storeContext(c)
	defer cancel()

	user, err := g.store.Create(ctx, registry.CreateInput{
		Name:   req.Name,
		Mood:   req.Mood,
		IsReal: req.IsReal,
	})
	if err != nil {
		g.writeError(c, err)
		return
	}
	g.logger.Info("User created", "id", user.ID, "is_real", user.IsReal)
	c.JSON(http.StatusCreated, user)
}

// updateUser answers 404 for unknown ids before looking at the body.
func (g *Gateway) updateUser(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := g.storeContext(c)
	defer cancel()

	if _, err := g.store.Get(ctx, id); err != nil {
		g.writeError(c, err)
		return
	}

	var req patchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.writeError(c, bindError(err))
		return
	}

	user, err := g.store.Update(ctx, id, registry.Patch{Name: req.Name, Mood: req.Mood})
	if err != nil {
		g.writeError(c, err)
		return
	}
	g.logger.Info("User updated", "id", user.ID)
	c.JSON(http.StatusOK, user)
}

func (g *Gateway) deleteUser(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := g.storeContext(c)
	defer cancel()

	if err := g.store.Delete(ctx, id); err != nil {
		g.writeError(c, err)
		return
	}
	g.logger.Info("User deleted", "id", id)
	c.Status(http.StatusNoContent)
}

func (g *Gateway) clearUsers(c *gin.Context) {
	ctx, cancel := g.storeContext(c)
	defer cancel()

	n, err := g.store.Clear(ctx)
	if err != nil {
		g.writeError(c, err)
		return
	}
	g.logger.Info("Users cleared", "cleared", n)
	c.JSON(http.StatusOK, clearResponse{Cleared: n})
}

// healthCheck reports aggregated health. Degraded still answers 200.
func (g *Gateway) healthCheck(c *gin.Context) {
	status := health.NewHealthy(g.name, "REST gateway serving")
	if g.health != nil {
		status = g.health.AggregateHealth("moodzy")
	}

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
