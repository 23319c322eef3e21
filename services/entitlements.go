package services

import (
	"context"
	"errors"

	"securedocs/repositories"

	"gorm.io/gorm"
)

// ShareGate answers the account level questions asked before a share is
// created.
type ShareGate interface {
	IsPremium(ctx context.Context, ownerID uint) (bool, error)
	IsOtpProtected(ctx context.Context, fileID uint, ownerID uint) (bool, error)
}

type AccountChecks struct {
	users repositories.UserRepository
	otp   repositories.OtpSecurityRepository
}

func NewAccountChecks(users repositories.UserRepository, otp repositories.OtpSecurityRepository) *AccountChecks {
	return &AccountChecks{users: users, otp: otp}
}

// IsPremium treats an unknown user as not premium.
func (c *AccountChecks) IsPremium(ctx context.Context, ownerID uint) (bool, error) {
	user, err := c.users.GetByID(ctx, nil, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsPremium, nil
}

func (c *AccountChecks) IsOtpProtected(ctx context.Context, fileID uint, ownerID uint) (bool, error) {
	return c.otp.IsEnabledForFile(ctx, nil, fileID, ownerID)
}
