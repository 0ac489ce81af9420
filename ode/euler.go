package ode

// Euler is the explicit first-order Euler method. Cheap and inaccurate;
// useful as a baseline and for systems where stability is not a concern.
type Euler struct{}

func (Euler) Name() string { return "euler" }

func (Euler) Step(sys System, h float64) error {
	vars := sys.Vars()
	y := vars.Values()
	k := make([]float64, len(y))

	if err := sys.Evaluate(y, k, h); err != nil {
		return err
	}
	for i := range y {
		y[i] += h * k[i]
	}
	vars.SetValues(y, false)
	return nil
}

// ModifiedEuler is the second-order Heun method: a full Euler predictor
// followed by an averaged corrector.
type ModifiedEuler struct{}

func (ModifiedEuler) Name() string { return "modified-euler" }

func (ModifiedEuler) Step(sys System, h float64) error {
	vars := sys.Vars()
	y := vars.Values()
	n := len(y)
	k1 := make([]float64, n)
	k2 := make([]float64, n)
	yp := make([]float64, n)

	if err := sys.Evaluate(y, k1, h); err != nil {
		return err
	}
	for i := range y {
		yp[i] = y[i] + h*k1[i]
	}
	if err := sys.Evaluate(yp, k2, h); err != nil {
		return err
	}
	for i := range y {
		y[i] += h * 0.5 * (k1[i] + k2[i])
	}
	vars.SetValues(y, false)
	return nil
}
