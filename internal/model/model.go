// Package model defines the data structures shared across the application.
package model

// Gift is a catalog entry. The catalog is static — it is loaded from a file
// at startup, not from a board. Stock here is the initial stock, used only
// as a fallback when no live inventory board is configured.
type Gift struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Image       string `json:"image,omitempty" yaml:"image,omitempty"`
	Stock       int    `json:"stock,omitempty" yaml:"stock,omitempty"`
}

// GiftAvailability is a Gift plus its remaining stock, as shown to users.
type GiftAvailability struct {
	Gift
	Remaining int `json:"remaining"`
}

// Claim is a single redemption: one user, one gift. The boards enforce no
// uniqueness, so "at most one claim per user" is the service's job.
type Claim struct {
	UserID      string `json:"userId"`
	GiftID      string `json:"giftId"`
	GiftTitle   string `json:"giftTitle"`
	DisplayName string `json:"displayName,omitempty"`
}

// Receipt is returned on a successful claim. Warnings carry non-fatal
// problems from advisory steps (e.g. the display-name lookup failed);
// they never indicate the claim itself failed.
type Receipt struct {
	ClaimID      string   `json:"claimId"`
	SubmissionID string   `json:"submissionId"`
	GiftTitle    string   `json:"giftTitle"`
	Warnings     []string `json:"warnings,omitempty"`
}
