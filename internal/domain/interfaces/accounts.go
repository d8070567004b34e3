package interfaces

import domaintypes "duet/internal/domain/types"

// AccountStore persists per-relay account profiles.
type AccountStore interface {
	SaveAccountProfile(profile domaintypes.AccountProfile) error
	LoadAccountProfile(
		serverURL string,
		username domaintypes.Username,
	) (domaintypes.AccountProfile, bool, error)
	// ListAccountProfiles returns every profile registered against serverURL.
	ListAccountProfiles(serverURL string) ([]domaintypes.AccountProfile, error)
}
