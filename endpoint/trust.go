package endpoint

import (
	"fmt"
	"time"

	"github.com/danursasmita/bengkel-ops/model"
	"github.com/danursasmita/bengkel-ops/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// trustState is derived from a trust record's presence and flags; it is
// never stored as an explicit column.
type trustState int

const (
	trustUnknown trustState = iota
	trustPending
	trustApproved
	trustBanned
)

// trustStateOf evaluates the state machine's current state for a record.
// A banned record is banned no matter what IsApproved says.
func trustStateOf(rec *model.TrustedIP) trustState {
	switch {
	case rec == nil:
		return trustUnknown
	case rec.IsBanned:
		return trustBanned
	case rec.IsApproved:
		return trustApproved
	default:
		return trustPending
	}
}

// loadTrustedIP does a point lookup on the (user, address) key. Returns
// (nil, nil) when no record exists.
func loadTrustedIP(db *gorm.DB, userID uint, ip string) (*model.TrustedIP, error) {
	var rec model.TrustedIP
	err := db.Where("user_id = ? AND ip_address = ?", userID, ip).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// trustPatch carries the non-key fields merged into a trust record on
// upsert. Nil fields are left untouched; a zero Location never clears
// previously stored geolocation.
type trustPatch struct {
	Approved  *bool
	Location  *util.Location
	UserAgent string
}

// ensureTrustedIP inserts the pending row for the pair if it does not
// exist. The conflict clause on the (user_id, ip_address) key makes the
// insert a no-op when another writer got there first, so concurrent first
// logins both end up reading the same row.
func ensureTrustedIP(db *gorm.DB, userID uint, ip string) (*model.TrustedIP, error) {
	fresh := model.TrustedIP{
		UserID:     userID,
		IPAddress:  ip,
		LastSeenAt: time.Now(),
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "ip_address"}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		return nil, err
	}

	rec, err := loadTrustedIP(db, userID, ip)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("trust record for user %d missing after insert", userID)
	}
	return rec, nil
}

// upsertTrustedIP creates the record in pending state if absent, merges the
// patch into it, and always refreshes LastSeenAt. Idempotent: racing
// writers converge on one row, last writer wins on the non-key fields.
func upsertTrustedIP(db *gorm.DB, userID uint, ip string, patch trustPatch) (*model.TrustedIP, error) {
	rec, err := loadTrustedIP(db, userID, ip)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec, err = ensureTrustedIP(db, userID, ip)
		if err != nil {
			return nil, err
		}
	}

	if patch.Approved != nil {
		rec.IsApproved = *patch.Approved
	}
	if patch.Location != nil && !patch.Location.IsZero() {
		applyLocation(rec, *patch.Location)
	}
	if patch.UserAgent != "" {
		agent := patch.UserAgent
		rec.UserAgent = &agent
	}
	rec.LastSeenAt = time.Now()

	if err := db.Save(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func applyLocation(rec *model.TrustedIP, loc util.Location) {
	if loc.Country != "" {
		country := loc.Country
		rec.Country = &country
	}
	if loc.Region != "" {
		region := loc.Region
		rec.Region = &region
	}
	if loc.City != "" {
		city := loc.City
		rec.City = &city
	}
	if loc.Latitude != 0 || loc.Longitude != 0 {
		lat, lon := loc.Latitude, loc.Longitude
		rec.Latitude = &lat
		rec.Longitude = &lon
	}
	if loc.ISP != "" {
		isp := loc.ISP
		rec.ISP = &isp
	}
}

// touchTrustedIP refreshes LastSeenAt and the last-seen client signature on
// the approved fast path without altering any flags.
func touchTrustedIP(db *gorm.DB, rec *model.TrustedIP, agent string) error {
	if agent != "" {
		rec.UserAgent = &agent
	}
	rec.LastSeenAt = time.Now()
	return db.Save(rec).Error
}
