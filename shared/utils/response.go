package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
)

// ErrorBody is the JSON body of every failed request
type ErrorBody struct {
	Success bool        `json:"success"`
	Kind    apperr.Kind `json:"kind"`
	Error   string      `json:"error"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:         http.StatusBadRequest,
	apperr.KindNotFound:           http.StatusNotFound,
	apperr.KindInvalidSchedule:    http.StatusBadRequest,
	apperr.KindScheduleConflict:   http.StatusConflict,
	apperr.KindDuplicateName:      http.StatusConflict,
	apperr.KindSessionInPast:      http.StatusBadRequest,
	apperr.KindSessionNotOpen:     http.StatusConflict,
	apperr.KindAlreadyBooked:      http.StatusConflict,
	apperr.KindSessionFull:        http.StatusConflict,
	apperr.KindUnauthorized:       http.StatusUnauthorized,
	apperr.KindForbidden:          http.StatusForbidden,
	apperr.KindAlreadyCancelled:   http.StatusConflict,
	apperr.KindCancellationClosed: http.StatusBadRequest,
	apperr.KindBusy:               http.StatusServiceUnavailable,
	apperr.KindInternal:           http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an error kind
func StatusFor(kind apperr.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponse sends an error body with an explicit status and kind
func ErrorResponse(c *gin.Context, statusCode int, kind apperr.Kind, message string) {
	c.JSON(statusCode, ErrorBody{
		Success: false,
		Kind:    kind,
		Error:   message,
	})
}

// RespondError maps err to its status code and writes the error body.
// Internal errors are logged in full and reported with a generic message.
func RespondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
	}
	if apperr.Retryable(err) {
		c.Header("Retry-After", "1")
	}
	ErrorResponse(c, StatusFor(kind), kind, apperr.PublicMessage(err))
}

// AbortWithError writes the error body and stops the middleware chain
func AbortWithError(c *gin.Context, err error) {
	RespondError(c, err)
	c.Abort()
}

// BindingError converts a gin binding failure into a Validation error,
// naming the first offending field when the validator reports one
func BindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return apperr.New(apperr.KindValidation, "%s is required", fe.Field())
		case "oneof":
			return apperr.New(apperr.KindValidation, "%s must be one of [%s]", fe.Field(), fe.Param())
		case "max":
			return apperr.New(apperr.KindValidation, "%s must be at most %s", fe.Field(), fe.Param())
		case "min", "gte":
			return apperr.New(apperr.KindValidation, "%s must be at least %s", fe.Field(), fe.Param())
		case "gt":
			return apperr.New(apperr.KindValidation, "%s must be greater than %s", fe.Field(), fe.Param())
		case "uuid":
			return apperr.New(apperr.KindValidation, "%s must be a valid UUID", fe.Field())
		default:
			return apperr.New(apperr.KindValidation, "%s is invalid", fe.Field())
		}
	}
	return apperr.Wrap(apperr.KindValidation, err, "invalid request body")
}

// CreatedResponse sends a 201 Created response with the bare entity
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// OKResponse sends a 200 OK response with the bare entity or list
func OKResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}
