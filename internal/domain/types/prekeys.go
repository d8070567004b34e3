package types

// SignedPreKeyPair is the full (private+public) signed pre-key stored locally.
type SignedPreKeyPair struct {
	Priv      []byte    `json:"priv"`
	Pub       PublicKey `json:"pub"`
	Signature []byte    `json:"signature"`
}

// OneTimePreKeyPair is the full (private+public) one-time pre-key stored locally.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID `json:"id"`
	Priv []byte          `json:"priv"`
	Pub  PublicKey       `json:"pub"`
}

// OneTimePreKeyPublic is only the public half (sent in bundles).
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub PublicKey       `json:"pub" validate:"required,min=32,max=133"`
}

// PreKeyBundle is the set of public keys a responder publishes to the directory.
type PreKeyBundle struct {
	Username              Username              `json:"username" validate:"required,max=64,printascii"`
	Suite                 SuiteID               `json:"suite" validate:"required,suite"`
	IdentityKey           PublicKey             `json:"identity_key" validate:"required,min=32,max=133"`
	SigningKey            PublicKey             `json:"signing_key" validate:"required,min=32,max=256"`
	SignedPreKey          PublicKey             `json:"signed_pre_key" validate:"required,min=32,max=133"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature" validate:"required,max=256"`
	OneTimePreKeys        []OneTimePreKeyPublic `json:"one_time_pre_keys" validate:"dive"`
}

// FetchedBundle is what the directory hands an initiator: the published
// bundle with exactly one one-time pre-key selected.
type FetchedBundle struct {
	Username              Username            `json:"username" validate:"required,max=64,printascii"`
	Suite                 SuiteID             `json:"suite" validate:"required,suite"`
	IdentityKey           PublicKey           `json:"identity_key" validate:"required,min=32,max=133"`
	SigningKey            PublicKey           `json:"signing_key" validate:"required,min=32,max=256"`
	SignedPreKey          PublicKey           `json:"signed_pre_key" validate:"required,min=32,max=133"`
	SignedPreKeySignature []byte              `json:"signed_pre_key_signature" validate:"required,max=256"`
	OneTimePreKey         OneTimePreKeyPublic `json:"one_time_pre_key"`
}

// Select returns the fetched form of b carrying opk.
func (b PreKeyBundle) Select(opk OneTimePreKeyPublic) FetchedBundle {
	return FetchedBundle{
		Username:              b.Username,
		Suite:                 b.Suite,
		IdentityKey:           b.IdentityKey,
		SigningKey:            b.SigningKey,
		SignedPreKey:          b.SignedPreKey,
		SignedPreKeySignature: b.SignedPreKeySignature,
		OneTimePreKey:         opk,
	}
}
