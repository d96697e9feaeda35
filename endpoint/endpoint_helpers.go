package endpoint

import (
	"fmt"

	"github.com/danursasmita/bengkel-ops/mail"
	"github.com/danursasmita/bengkel-ops/middleware"
	"github.com/danursasmita/bengkel-ops/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// clientInfo groups the request attributes carried through the login flow.
type clientInfo struct {
	IP    string
	Agent string
}

func bindJSONOrRespond(c *gin.Context, dst interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: msg, Err: err})
		return false
	}
	return true
}

func getDBOrRespond(c *gin.Context) (*gorm.DB, bool) {
	db := middleware.GetDB(c)
	if db == nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database connection not available", Err: fmt.Errorf("db is nil")})
		return nil, false
	}
	return db, true
}

// The verification mailer is wired in at startup. A nil mailer means the
// transport is not configured; challenge issuance fails hard in that case.
var verificationMailer mail.Mailer

// SetMailer injects the mailer used for verification-code delivery.
func SetMailer(m mail.Mailer) {
	verificationMailer = m
}
