package api

import (
	"errors"
	"net/http"

	"arcade/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	codeInvalidJSON  = "invalid_json"
	codeInvalidQuery = "invalid_query"
)

// respondOK writes a success envelope
func respondOK(c *gin.Context, body gin.H) {
	body["ok"] = true
	c.JSON(http.StatusOK, body)
}

// respondError maps a service error to its status and writes the error envelope.
// Unclassified errors are logged and reported as a generic transaction failure.
func respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		svcErr = &service.Error{
			Kind:    service.KindStorage,
			Code:    service.ErrTransactionFailed.Code,
			Message: service.ErrTransactionFailed.Message,
			Err:     err,
		}
	}

	status := statusForKind(svcErr.Kind)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path": c.FullPath(),
			"code": svcErr.Code,
		}).WithError(err).Error("Request failed")
	}

	writeError(c, status, svcErr.Code, svcErr.Message)
}

// writeError writes {ok:false,error,code} with a localized message
func writeError(c *gin.Context, status int, code, english string) {
	c.AbortWithStatusJSON(status, gin.H{
		"ok":    false,
		"error": localize(c, code, english),
		"code":  code,
	})
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation, service.KindConflict:
		return http.StatusBadRequest
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
