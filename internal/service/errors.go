package service

import (
	"github.com/escriba-app/escriba/internal/domain"
)

// Lookup errors - use domain.ENOTFOUND
var (
	ErrUserNotFound  = domain.Errorf(domain.ENOTFOUND, "", "User not found")
	ErrPlanNotFound  = domain.Errorf(domain.ENOTFOUND, "", "Plan not found")
	ErrOrderNotFound = domain.Errorf(domain.ENOTFOUND, "", "Order not found")
)

// Validation errors - use domain.EINVALID
var (
	ErrInvalidOrderStatus = domain.Errorf(domain.EINVALID, "", "Invalid order status filter")
)

// Gateway errors
var (
	ErrGatewayUnavailable = domain.Errorf(domain.EUNAVAILABLE, "", "Payment gateway is not configured")
)
