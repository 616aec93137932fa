package model

// GoogleProviderID names the identity provider whose subject is used as the
// external profile id by the profile-sync service.
const GoogleProviderID = "google.com"

// Identity links an application user id to an account at an external
// identity provider.
type Identity struct {
	UserID      string // the queue/{uid} segment
	Provider    string // e.g. "google.com"
	ProviderUID string // subject id at that provider
}
