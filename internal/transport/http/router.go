package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"emprendo-intake/internal/app"
)

// NewRouter wires the public intake pages and the staff grading endpoints.
func NewRouter(service *app.IntakeService, monitor *app.RunMonitor) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	intake := NewIntakeHandler(service)
	apply := r.Group("/apply/:key")
	{
		apply.GET("/", intake.ShowForm)
		apply.POST("/", intake.Submit)
		apply.GET("/continue/:token/", intake.ShowContinuation)
		apply.POST("/continue/:token/", intake.SubmitContinuation)
	}
	r.GET("/results/:id", intake.ShowResult)

	runs := NewRunHandler(monitor)
	grading := r.Group("/grading/runs")
	{
		grading.POST("", runs.Start)
		grading.GET("/:id", runs.Progress)
		grading.GET("/:id/ws", runs.Stream)
	}
	return r
}
