package endpoint

import (
	"github.com/danursasmita/bengkel-ops/model"
	"github.com/danursasmita/bengkel-ops/util"
	"github.com/gin-gonic/gin"
)

type BanCheckRequest struct {
	PublicIP string `json:"public_ip" binding:"required" example:"5.6.7.8"`
}

type BanCheckResponse struct {
	Address  string `json:"address" example:"5.6.7.8"`
	IsBanned bool   `json:"is_banned"`
}

// CheckIPBan godoc
// @Summary      Pre-flight address ban check
// @Description  Report whether an address is banned for any account, before credentials are attempted. No authentication required.
// @Tags         Trust
// @Accept       json
// @Produce      json
// @Param        request body BanCheckRequest true "Public address to check"
// @Success      200 {object} util.APIResponse{data=BanCheckResponse} "Ban verdict"
// @Failure      400 {object} util.APIResponse "Missing or invalid address"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /ip/ban-check [post]
func CheckIPBan(c *gin.Context) {
	var req BanCheckRequest

	if !bindJSONOrRespond(c, &req, "Public IP address is required") {
		return
	}

	addr, err := util.NormalizeIP(req.PublicIP)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid public IP address", Err: err})
		return
	}

	if banned, ok := util.BanCacheGet(addr); ok {
		util.CallSuccessOK(c, util.APISuccessParams{
			Msg:  "Ban check complete",
			Data: BanCheckResponse{Address: addr, IsBanned: banned},
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	// A ban under any account bans the address for the pre-flight check.
	var count int64
	if err := db.Model(&model.TrustedIP{}).
		Where("ip_address = ? AND is_banned = ?", addr, true).
		Count(&count).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check address", Err: err})
		return
	}

	banned := count > 0
	util.BanCacheSet(addr, banned)

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Ban check complete",
		Data: BanCheckResponse{Address: addr, IsBanned: banned},
	})
}
