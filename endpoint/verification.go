package endpoint

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/danursasmita/bengkel-ops/model"
	"gorm.io/gorm"
)

// Verification codes are valid for 10 minutes from issuance.
const verificationCodeTTL = 10 * time.Minute

var oneMillion = big.NewInt(1000000)

// generateVerificationCode draws a uniformly random 6-digit code from
// crypto/rand. Collisions across pairs are acceptable: a code only
// verifies together with its (user, address) scope and time window.
func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, oneMillion)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// issueVerificationCode persists a fresh code for the pair. Earlier unused
// codes are left valid so a user who lost the first email can still submit
// a retried one; each code is single-use regardless.
func issueVerificationCode(db *gorm.DB, userID uint, ip string) (string, error) {
	code, err := generateVerificationCode()
	if err != nil {
		return "", err
	}
	rec := model.VerificationCode{
		UserID:    userID,
		IPAddress: ip,
		Code:      code,
		ExpiresAt: time.Now().Add(verificationCodeTTL),
		Used:      false,
	}
	if err := db.Create(&rec).Error; err != nil {
		return "", err
	}
	return code, nil
}

// consumeVerificationCode finds the most recently issued unused, unexpired
// code matching the pair and submission exactly, and marks it used. Returns
// false with no state change when nothing matches. The mark is a guarded
// update keyed on used = false, so racing submissions of the same code
// consume it at most once.
func consumeVerificationCode(db *gorm.DB, userID uint, ip, code string) (bool, error) {
	var rec model.VerificationCode
	err := db.Where("user_id = ? AND ip_address = ? AND code = ? AND used = ? AND expires_at > ?",
		userID, ip, code, false, time.Now()).
		Order("created_at DESC").
		First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	res := db.Model(&model.VerificationCode{}).
		Where("id = ? AND used = ?", rec.ID, false).
		Update("used", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
