package ports

import "context"

// PackageConfigReader surfaces admin-managed package parameters. Zero values
// mean "no override"; callers fall back to service configuration.
type PackageConfigReader interface {
	GetBinaryRate(ctx context.Context, packageID string) (float64, error)
	GetCappingLimit(ctx context.Context, packageID string) (float64, error)
	GetDailyROIRate(ctx context.Context, packageID string) (float64, error)
}

type UserIdentity struct {
	UserID string
	Email  string
	Role   string
}

type UserDirectoryReader interface {
	GetUser(ctx context.Context, userID string) (UserIdentity, error)
}
