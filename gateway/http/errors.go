package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/TSherpa10/moodzy/errors"
)

// Response messages. Internal detail never reaches clients.
const (
	msgInvalidBody = "Invalid body"
	msgNotFound    = "queried user id is not in the list of users!"
	msgUnavailable = "service temporarily unavailable"
	msgInternal    = "internal server error"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Message string         `json:"message"`
	Issues  []errors.Issue `json:"issues,omitempty"`
}

var jsonFieldNames sync.Once

// useJSONFieldNames makes validator report json names ("isReal") instead of
// Go field names in issues.
func useJSONFieldNames() {
	jsonFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindError converts a gin binding failure into a ValidationError.
func bindError(err error) *errors.ValidationError {
	verr := errors.NewValidationError()

	var fieldErrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var sizeErr *http.MaxBytesError

	switch {
	case stderrors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), fe.Tag(), fieldMessage(fe))
		}
	case stderrors.As(err, &typeErr):
		verr.Add(typeErr.Field, "type", fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
	case stderrors.As(err, &sizeErr):
		verr.Add("body", "max_bytes", fmt.Sprintf("body exceeds %d bytes", sizeErr.Limit))
	case stderrors.As(err, &syntaxErr), stderrors.Is(err, io.ErrUnexpectedEOF):
		verr.Add("body", "json", "body must be a JSON object")
	case stderrors.Is(err, io.EOF):
		verr.Add("body", "required", "body must not be empty")
	default:
		verr.Add("body", "json", "body could not be parsed")
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// writeError maps err onto a status code and a sanitized body.
func (g *Gateway) writeError(c *gin.Context, err error) {
	var verr *errors.ValidationError
	switch {
	case stderrors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody, Issues: verr.Issues})
	case stderrors.Is(err, errors.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Message: msgNotFound})
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		g.logger.Warn("Request did not complete", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusServiceUnavailable, errorResponse{Message: msgUnavailable})
	default:
		g.stats.RecordError(err)
		if g.metrics != nil {
			g.metrics.RecordError(g.name, errors.Classify(err).String())
		}
		g.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Message: msgInternal})
	}
}
