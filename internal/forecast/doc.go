// Package forecast implements an additive regression forecaster.
//
// A model decomposes a series into a piecewise trend (linear, or logistic
// between a floor and a cap), Fourier seasonalities and holiday effects:
//
//	additive:       y(t) = trend(t) + S(t)
//	multiplicative: y(t) = trend(t) * (1 + S(t))
//
// Parameters are estimated by penalized least squares, with Gaussian priors
// on changepoint deltas, seasonal and holiday coefficients, solved with a
// damped Gauss-Newton iteration.
//
// Basic usage:
//
//	m := forecast.New(forecast.DefaultOptions())
//	m.AddSeasonality(forecast.Seasonality{Name: "monthly", Period: 30.4375, FourierOrder: 5})
//	if err := m.Fit(ctx, history); err != nil {
//		return err
//	}
//	future, _ := m.MakeFutureFrame(24, forecast.FreqMonthEnd, true)
//	res, err := m.Predict(ctx, future)
package forecast
