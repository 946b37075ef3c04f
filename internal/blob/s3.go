package blob

import (
	"context"

	infraS3 "ritual/internal/infra/blob/s3"
)

// S3Config configures NewS3.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	s, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewMockS3ForTests returns an S3 Store whose HTTP client talks to an
// in-process fake, for tests outside the driver package.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
