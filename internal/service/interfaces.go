package service

import "context"

type ManifestIssuer interface {
	Issue(ctx context.Context, req ManifestRequest) (*ManifestResult, error)
}

type TileServer interface {
	Serve(ctx context.Context, req TileRequest) (*TileResult, error)
}
