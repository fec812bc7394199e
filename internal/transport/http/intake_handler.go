package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"emprendo-intake/internal/app"
	"emprendo-intake/internal/domain"
	"emprendo-intake/internal/grading"
)

type IntakeHandler struct {
	service *app.IntakeService
}

func NewIntakeHandler(service *app.IntakeService) *IntakeHandler {
	return &IntakeHandler{service: service}
}

// submissionRequest is the JSON alternative to a form post.
type submissionRequest struct {
	Name   string              `json:"name"`
	Email  string              `json:"email"`
	Values map[string][]string `json:"values" binding:"required"`
}

// ShowForm serves the stage-1 form of a track, or a public form by slug.
func (h *IntakeHandler) ShowForm(c *gin.Context) {
	key := c.Param("key")
	var (
		view app.FormView
		err  error
	)
	if _, ok := grading.ParseTrack(key); ok {
		view, err = h.service.StageOneForm(c.Request.Context(), key)
	} else {
		view, err = h.service.FormBySlug(c.Request.Context(), key)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *IntakeHandler) Submit(c *gin.Context) {
	sub, ok := bindSubmission(c)
	if !ok {
		return
	}
	key := c.Param("key")
	var (
		res domain.SubmissionResult
		err error
	)
	if _, isTrack := grading.ParseTrack(key); isTrack {
		res, err = h.service.SubmitStageOne(c.Request.Context(), key, sub)
	} else {
		res, err = h.service.SubmitBySlug(c.Request.Context(), key, sub)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, res)
}

func (h *IntakeHandler) ShowContinuation(c *gin.Context) {
	view, err := h.service.Continuation(c.Request.Context(), c.Param("key"), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *IntakeHandler) SubmitContinuation(c *gin.Context) {
	sub, ok := bindSubmission(c)
	if !ok {
		return
	}
	res, err := h.service.SubmitContinuation(c.Request.Context(), c.Param("key"), c.Param("token"), sub)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, res)
}

// ShowResult serves the thanks-page record of a submission.
func (h *IntakeHandler) ShowResult(c *gin.Context) {
	res, err := h.service.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func bindSubmission(c *gin.Context) (app.Submission, bool) {
	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var req submissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid submission payload"})
			return app.Submission{}, false
		}
		return app.Submission{Name: req.Name, Email: req.Email, Values: url.Values(req.Values)}, true
	}

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		if err := c.Request.ParseMultipartForm(8 << 20); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid form body"})
			return app.Submission{}, false
		}
	} else if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid form body"})
		return app.Submission{}, false
	}
	values := c.Request.PostForm
	return app.Submission{Name: values.Get("name"), Email: values.Get("email"), Values: values}, true
}

func created(c *gin.Context, res domain.SubmissionResult) {
	c.Header("Location", "/results/"+res.ID)
	c.JSON(http.StatusCreated, res)
}
