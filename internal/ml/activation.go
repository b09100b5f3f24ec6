package ml

type IActivationFn interface {
	Sigma(x float64) float64
	SigmaPrime(x float64) float64
}

type IdentityActivation struct{}

func (*IdentityActivation) Sigma(x float64) float64      { return x }
func (*IdentityActivation) SigmaPrime(x float64) float64 { return 1 }

// ClippedReLuActivation clamps to [0, 1].
type ClippedReLuActivation struct{}

func (*ClippedReLuActivation) Sigma(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return x
}

func (*ClippedReLuActivation) SigmaPrime(x float64) float64 {
	if x > 0 && x < 1 {
		return 1
	}
	return 0
}
