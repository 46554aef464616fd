package main

import (
	"context"
	"time"

	"midnight-indexer/internal/chain"
	"midnight-indexer/internal/domain"
)

const gracefulShutdownTimeout = 10 * time.Second

// unconnectedNodeClient is the seam chain.NodeClient leaves for a concrete
// node transport (the wire protocol is chosen per deployment); it fails
// every subscribe attempt so Follower.Run's backoff loop is exercised
// immediately instead of the binary silently doing nothing.
type unconnectedNodeClient struct{}

func (unconnectedNodeClient) SubscribeFinalizedBlocks(ctx context.Context, fromHeight uint32) (<-chan chain.RawBlock, <-chan error, error) {
	return nil, nil, domain.NewError(domain.KindTransient, "no node transport configured")
}

func unimplementedDecoder(raw chain.RawBlock) (domain.Block, error) {
	return domain.Block{}, domain.NewError(domain.KindTransient, "no block decoder configured")
}

func unimplementedDecryptor(viewingKey, raw []byte) (bool, []byte, error) {
	return false, nil, nil
}
