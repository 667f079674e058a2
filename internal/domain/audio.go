package domain

import "fmt"

type PanningModel string

const (
	PanningBinaural   PanningModel = "binaural"
	PanningEqualPower PanningModel = "equal-power"
)

func ParsePanningModel(s string) (PanningModel, error) {
	switch PanningModel(s) {
	case PanningBinaural, PanningEqualPower:
		return PanningModel(s), nil
	case "equalpower", "EqualPower":
		return PanningEqualPower, nil
	case "Binaural", "HRTF", "hrtf":
		return PanningBinaural, nil
	}
	return "", fmt.Errorf("unknown panning model %q", s)
}

// DirectionalMode selects which directional stage a pipeline is built with.
type DirectionalMode string

const (
	DirectionalStereo     DirectionalMode = "stereo"
	DirectionalPositional DirectionalMode = "positional"
)

func ParseDirectionalMode(s string) (DirectionalMode, error) {
	switch DirectionalMode(s) {
	case DirectionalStereo, DirectionalPositional:
		return DirectionalMode(s), nil
	}
	return "", fmt.Errorf("unknown directional mode %q", s)
}

type DistanceModel string

const (
	DistanceLinear      DistanceModel = "linear"
	DistanceInverse     DistanceModel = "inverse"
	DistanceExponential DistanceModel = "exponential"
)
