package storefront

import "errors"

var (
	ErrDistrictNotFound = errors.New("district not found")
	ErrChannelNotFound  = errors.New("payment channel not found")
)
