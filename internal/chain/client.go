// Package chain owns the ingestion pipeline's pull side: a NodeClient
// abstraction over the upstream finalized-block stream, a Decoder that
// turns wire blocks into domain.Block, and a Follower that drives both with
// retry/backoff and hands decoded blocks to storage over a bounded channel.
package chain

import "context"

// RawBlock is an undecoded finalized block as delivered by the node. Its
// wire encoding belongs to the node transport; this type is the seam a
// concrete NodeClient implementation fills in once a transport is chosen.
type RawBlock struct {
	Height uint32
	Bytes  []byte
}

// NodeClient abstracts the upstream connection. SubscribeFinalizedBlocks
// streams every finalized block with height >= fromHeight, in ascending
// order, until ctx is canceled or a transport error occurs.
type NodeClient interface {
	SubscribeFinalizedBlocks(ctx context.Context, fromHeight uint32) (<-chan RawBlock, <-chan error, error)
}
