package types

// Role records which side of the handshake a party played.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Session holds the handshake-derived session key and metadata for a peer.
type Session struct {
	ID              string          `json:"id"`
	Peer            Username        `json:"peer"`
	Role            Role            `json:"role"`
	Suite           SuiteID         `json:"suite"`
	Key             []byte          `json:"key"`
	AssociatedData  []byte          `json:"associated_data"`
	PeerIdentityKey PublicKey       `json:"peer_identity_key"`
	OneTimePreKeyID OneTimePreKeyID `json:"one_time_pre_key_id"`
	CreatedUTC      int64           `json:"created_utc"`
}
