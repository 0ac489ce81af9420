package ode

// RungeKutta is the classic fourth-order Runge-Kutta method. The default
// solver: fourth-order accurate at four derivative evaluations per step.
type RungeKutta struct{}

func (RungeKutta) Name() string { return "runge-kutta" }

func (RungeKutta) Step(sys System, h float64) error {
	vars := sys.Vars()
	y := vars.Values()
	n := len(y)
	k1 := make([]float64, n)
	k2 := make([]float64, n)
	k3 := make([]float64, n)
	k4 := make([]float64, n)
	yt := make([]float64, n)

	if err := sys.Evaluate(y, k1, h); err != nil {
		return err
	}
	for i := range y {
		yt[i] = y[i] + h*0.5*k1[i]
	}
	if err := sys.Evaluate(yt, k2, h); err != nil {
		return err
	}
	for i := range y {
		yt[i] = y[i] + h*0.5*k2[i]
	}
	if err := sys.Evaluate(yt, k3, h); err != nil {
		return err
	}
	for i := range y {
		yt[i] = y[i] + h*k3[i]
	}
	if err := sys.Evaluate(yt, k4, h); err != nil {
		return err
	}
	for i := range y {
		y[i] += h / 6.0 * (k1[i] + 2*k2[i] + 2*k3[i] + k4[i])
	}
	vars.SetValues(y, false)
	return nil
}
