package auth

import "github.com/pkg/errors"

var (
	NotAuthenticatedErr      = errors.New("not authenticated")
	MissingCallbackParamsErr = errors.New("missing oauth callback parameters")
)
