package chain

import "midnight-indexer/internal/domain"

// Decoder turns a RawBlock into the domain shape Storage commits. The
// concrete wire format belongs to the node transport; a real Decoder is
// injected by the binary that wires a specific node transport, matching
// the injected-Decryptor seam in internal/wallet.
type Decoder interface {
	Decode(raw RawBlock) (domain.Block, error)
}

// DecoderFunc adapts a plain function to Decoder.
type DecoderFunc func(RawBlock) (domain.Block, error)

func (f DecoderFunc) Decode(raw RawBlock) (domain.Block, error) { return f(raw) }
