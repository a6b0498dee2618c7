package domain

import "time"

// Upload tracks the provenance of an image relayed through the bot:
// which product it belongs to, the Telegram file id, and the resolved URL.
type Upload struct {
	ID         int       `json:"id"`
	ProductID  int       `json:"productId,omitempty"`
	FileID     string    `json:"fileId"`
	URL        string    `json:"url"`
	UploadDate time.Time `json:"uploadDate"`
}

func (u Upload) RecordID() int { return u.ID }
