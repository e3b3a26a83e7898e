package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by the session
// manager and application workflow to communicate specific error conditions.
// -----------------------------------------------------------------------------

// Plan and form errors
var (
	ErrPlanNotFound     = errors.New("membership plan not found")
	ErrFormNotAvailable = errors.New("application form not available for this plan")
	ErrOwnPlan          = errors.New("plan creators cannot apply to their own plan")
)

// Coupon errors
var (
	ErrCouponInvalid       = errors.New("coupon is invalid or not applicable to this plan")
	ErrCouponNotApplicable = errors.New("coupons cannot be applied to a free plan")
)

// Session errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)
