package endpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danursasmita/bengkel-ops/config"
	"github.com/danursasmita/bengkel-ops/model"
	"github.com/danursasmita/bengkel-ops/util"
	"github.com/gin-gonic/gin"
)

// sessionView is the token-validation payload: the session row joined with
// the role name.
type sessionView struct {
	model.Session
	Role string `json:"role"`
}

// ValidateToken godoc
// @Summary      Validate session token
// @Description  Validate if the session token is valid and not expired
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=sessionView} "Valid session token"
// @Failure      401 {object} util.APIResponse "Invalid or expired session token"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /token/validate [get]
func ValidateToken(c *gin.Context) {
	token := c.GetHeader("session-token")
	if token == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Invalid session token",
			Err: fmt.Errorf("session token not provided"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	// The redis entry written at login is checked first; a hit skips the
	// join entirely.
	if view, ok := sessionFromRedis(token); ok {
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "Valid session token", Data: view})
		return
	}

	var view sessionView
	err := db.Table("sessions").
		Select("sessions.*, roles.name as role").
		Joins("JOIN users ON sessions.user_id = users.id").
		Joins("JOIN roles ON users.role_id = roles.id").
		Where("session_token = ? AND expires_at > ? AND sessions.deleted_at IS NULL", token, time.Now()).
		First(&view).Error
	if err != nil {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Session not found",
			Err: fmt.Errorf("session not found or expired"),
		})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Valid session token", Data: view})
}

// sessionFromRedis resolves a "userID:roleName" session entry cached at
// login. Best-effort: any miss or parse problem falls back to the database.
func sessionFromRedis(token string) (sessionView, bool) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return sessionView{}, false
	}

	val, err := rdb.Get(context.Background(), fmt.Sprintf("session:%s", token)).Result()
	if err != nil {
		return sessionView{}, false
	}
	parts := strings.SplitN(val, ":", 2)
	if len(parts) != 2 {
		return sessionView{}, false
	}

	var userID uint
	if _, err := fmt.Sscanf(parts[0], "%d", &userID); err != nil {
		return sessionView{}, false
	}

	view := sessionView{Role: parts[1]}
	view.UserID = userID
	view.SessionToken = token
	return view, true
}
