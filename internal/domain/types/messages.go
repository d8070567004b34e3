package types

// NonceSize is the AEAD nonce length carried on the wire.
const NonceSize = 12

// HandshakeMessage is the single message an initiator sends to a responder.
type HandshakeMessage struct {
	Suite                SuiteID         `json:"suite" validate:"required,suite"`
	InitiatorIdentityKey PublicKey       `json:"initiator_identity_key" validate:"required,min=32,max=133"`
	EphemeralKey         PublicKey       `json:"ephemeral_key" validate:"required,min=32,max=133"`
	OneTimePreKeyID      OneTimePreKeyID `json:"one_time_pre_key_id"`
	Nonce                []byte          `json:"nonce" validate:"len=12"`
	Ciphertext           []byte          `json:"ciphertext" validate:"required"`
}

// Envelope is one application message under an established session key.
type Envelope struct {
	Nonce      []byte `json:"nonce" validate:"len=12"`
	Ciphertext []byte `json:"ciphertext" validate:"required"`
}

// RelayMessage is the wire-format message you post/get from the relay mailbox.
// Exactly one of Handshake and Envelope is set.
type RelayMessage struct {
	From      Username          `json:"from" validate:"required,max=64,printascii"`
	To        Username          `json:"to" validate:"required,max=64,printascii"`
	Handshake *HandshakeMessage `json:"handshake,omitempty" validate:"required_without=Envelope"`
	Envelope  *Envelope         `json:"envelope,omitempty" validate:"required_without=Handshake"`
	Timestamp int64             `json:"timestamp"`
}

// DecryptedMessage is what MessageService.ReceiveMessage returns.
type DecryptedMessage struct {
	From      Username `json:"from"`
	To        Username `json:"to"`
	Plaintext []byte   `json:"plaintext"`
	Handshake bool     `json:"handshake"`
	Timestamp int64    `json:"timestamp"`
}
