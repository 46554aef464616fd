package domain

// ViewingKeySession is a server-side association between a client
// connection and a decrypted (in memory only) viewing key, used to scope
// shielded-transaction subscriptions. The key is held encrypted at rest;
// see internal/wallet for the AEAD wrapping.
type ViewingKeySession struct {
	SessionId         string
	Network           string
	WrappedViewingKey []byte // ciphertext; plaintext lives only in the session manager's memory
	LastScannedHeight uint32
}
