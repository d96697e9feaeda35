package model

import "gorm.io/gorm"

// EmailTemplate is a named outbound-mail template managed elsewhere in
// the application. The verification mailer looks templates up by Name
// and falls back to an inline message when the name is absent.
type EmailTemplate struct {
	gorm.Model
	Name    string `gorm:"type:varchar(100);uniqueIndex" json:"name"`
	Subject string `gorm:"type:varchar(255)" json:"subject"`
	Body    string `gorm:"type:text" json:"body"`
}
