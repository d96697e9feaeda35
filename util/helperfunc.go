package util

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope every handler answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Msg     string      `json:"msg"`
	Data    interface{} `json:"data"`
}

type APIErrorParams struct {
	Msg string
	Err error
}

type APISuccessParams struct {
	Msg  string
	Data interface{}
}

func respondError(c *gin.Context, status int, params APIErrorParams) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   params.Err.Error(),
		Msg:     params.Msg,
		Data:    map[string]interface{}{},
	})
}

// CallErrorNotFound answers 404.
func CallErrorNotFound(c *gin.Context, params APIErrorParams) {
	respondError(c, http.StatusNotFound, params)
}

// CallUserError answers 400 for input the caller can fix.
func CallUserError(c *gin.Context, params APIErrorParams) {
	respondError(c, http.StatusBadRequest, params)
}

// CallServerError answers 500.
func CallServerError(c *gin.Context, params APIErrorParams) {
	respondError(c, http.StatusInternalServerError, params)
}

// CallUserNotAuthorized answers 401. Credential failures use a constant
// message so account existence is not leaked.
func CallUserNotAuthorized(c *gin.Context, params APIErrorParams) {
	respondError(c, http.StatusUnauthorized, params)
}

// CallUserForbidden answers 403. Used for suspended accounts and banned
// addresses, which need different user action than a plain credential
// failure.
func CallUserForbidden(c *gin.Context, params APIErrorParams) {
	respondError(c, http.StatusForbidden, params)
}

// CallSuccessOK answers 200 with the given message and payload.
func CallSuccessOK(c *gin.Context, params APISuccessParams) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Msg:     params.Msg,
		Data:    params.Data,
	})
}

// NormalizeEmail lowers and trims an email address so lookups and the
// unique index agree on a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
