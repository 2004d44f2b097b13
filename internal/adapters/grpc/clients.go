package grpc

import (
	"context"

	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

// Stub upstream clients: package parameters and the user directory live in
// other platform services. Zero-valued returns mean "no override" so the
// engine falls back to its configured rates until the real endpoints land.
type PackageConfigClient struct{}
type UserDirectoryClient struct{}

func NewPackageConfigClient(_ string) *PackageConfigClient { return &PackageConfigClient{} }
func NewUserDirectoryClient(_ string) *UserDirectoryClient { return &UserDirectoryClient{} }

func (c *PackageConfigClient) GetBinaryRate(_ context.Context, _ string) (float64, error) {
	return 0, nil
}

func (c *PackageConfigClient) GetCappingLimit(_ context.Context, _ string) (float64, error) {
	return 0, nil
}

func (c *PackageConfigClient) GetDailyROIRate(_ context.Context, _ string) (float64, error) {
	return 0, nil
}

func (c *UserDirectoryClient) GetUser(_ context.Context, userID string) (ports.UserIdentity, error) {
	return ports.UserIdentity{UserID: userID, Email: userID + "@example.com", Role: "member"}, nil
}
