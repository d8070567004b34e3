package types

// AccountProfile identifies a duet account on a specific relay server.
type AccountProfile struct {
	ServerURL string   `json:"server_url"`
	Username  Username `json:"username"`
	Suite     SuiteID  `json:"suite"`
}
