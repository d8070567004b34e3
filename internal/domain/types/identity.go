package types

// Identity holds your long-term exchange and signing keys.
//
// Private halves are in the private encoding of Suite; they never leave the
// local keystore.
type Identity struct {
	Suite        SuiteID   `json:"suite"`
	ExchangePriv []byte    `json:"exchange_priv"`
	ExchangePub  PublicKey `json:"exchange_pub"`
	SigningPriv  []byte    `json:"signing_priv"`
	SigningPub   PublicKey `json:"signing_pub"`
	CreatedUTC   int64     `json:"created_utc"`
}
