package endpoint

import (
	"fmt"
	"strconv"

	"github.com/danursasmita/bengkel-ops/model"
	"github.com/danursasmita/bengkel-ops/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListUserIPAddresses godoc
// @Summary      List address trust records for an account
// @Description  Operator view of every address the account has attempted to log in from, with approval/ban state and geolocation
// @Tags         Trust
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Success      200 {object} util.APIResponse{data=[]model.TrustedIP} "Trust records"
// @Failure      404 {object} util.APIResponse "User not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /user/{id}/ip-address [get]
func ListUserIPAddresses(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := loadUserByParamOrRespond(c, db)
	if !ok {
		return
	}

	var records []model.TrustedIP
	if err := db.Where("user_id = ?", user.ID).Order("last_seen_at DESC").Find(&records).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to list trust records", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Trust records fetched", Data: records})
}

type UpdateIPAddressRequest struct {
	IPAddressID uint  `json:"ip_address_id" binding:"required" example:"12"`
	IsBanned    *bool `json:"is_banned,omitempty"`
	IsApproved  *bool `json:"is_approved,omitempty"`
}

// UpdateUserIPAddress godoc
// @Summary      Override an address trust record
// @Description  Ban/unban or approve/revoke a single (account, address) trust record. Revoking approval returns the pair to pending without deleting geolocation history.
// @Tags         Trust
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "User ID"
// @Param        request body UpdateIPAddressRequest true "Fields to toggle"
// @Success      200 {object} util.APIResponse{data=model.TrustedIP} "Updated record"
// @Failure      400 {object} util.APIResponse "No fields to update"
// @Failure      404 {object} util.APIResponse "User or record not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /user/{id}/ip-address [patch]
func UpdateUserIPAddress(c *gin.Context) {
	var req UpdateIPAddressRequest

	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	if req.IsBanned == nil && req.IsApproved == nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Nothing to update", Err: fmt.Errorf("at least one of is_banned or is_approved is required")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := loadUserByParamOrRespond(c, db)
	if !ok {
		return
	}

	var rec model.TrustedIP
	err := db.Where("id = ? AND user_id = ?", req.IPAddressID, user.ID).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Trust record not found for this user", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: err})
		return
	}

	applyTrustOverride(&rec, req, c.ClientIP())

	if err := db.Save(&rec).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update trust record", Err: err})
		return
	}

	// The unauthenticated pre-check may have the old verdict cached.
	util.BanCacheInvalidate(rec.IPAddress)

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Trust record updated", Data: rec})
}

// applyTrustOverride mutates the record per the operator's toggles. Banning
// also clears approval so a later unban lands the pair back in pending
// rather than silently re-approved; evaluation treats banned as dominant
// regardless.
func applyTrustOverride(rec *model.TrustedIP, req UpdateIPAddressRequest, operatorIP string) {
	if req.IsBanned != nil {
		rec.IsBanned = *req.IsBanned
		if rec.IsBanned {
			rec.IsApproved = false
			util.LogTrustOverride(util.EventIPBanned, operatorIP, rec.IPAddress, rec.UserID)
		} else {
			util.LogTrustOverride(util.EventIPUnbanned, operatorIP, rec.IPAddress, rec.UserID)
		}
	}
	if req.IsApproved != nil {
		rec.IsApproved = *req.IsApproved
		if rec.IsApproved {
			util.LogTrustOverride(util.EventIPApproved, operatorIP, rec.IPAddress, rec.UserID)
		} else {
			util.LogTrustOverride(util.EventIPApprovalRevoked, operatorIP, rec.IPAddress, rec.UserID)
		}
	}
}

func loadUserByParamOrRespond(c *gin.Context, db *gorm.DB) (model.User, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid user id", Err: err})
		return model.User{}, false
	}

	var user model.User
	err = db.First(&user, uint(id)).Error
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "User not found", Err: err})
		return model.User{}, false
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: err})
		return model.User{}, false
	}
	return user, true
}
