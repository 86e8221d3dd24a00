package game

import "errors"

var (
	errPositionWrite = errors.New("position write rejected by engine")
	errWarpFailed    = errors.New("nav agent warp failed")
)
