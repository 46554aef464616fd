package wallet

// Decryptor attempts to open a raw zswap ledger event payload with a
// viewing key. The zero-knowledge decryption scheme lives in the ledger
// crypto library; this is the injection seam a concrete implementation
// fills in, analogous to chain.Decoder for block bytes.
type Decryptor interface {
	TryDecrypt(viewingKey, raw []byte) (matched bool, plaintext []byte, err error)
}

// DecryptorFunc adapts a plain function to Decryptor.
type DecryptorFunc func(viewingKey, raw []byte) (bool, []byte, error)

func (f DecryptorFunc) TryDecrypt(viewingKey, raw []byte) (bool, []byte, error) {
	return f(viewingKey, raw)
}
