package calculator

import "IPOTracker/internal/model"

// CalculatePerformance builds the feature vector for one symbol from its raw
// minute bars. Each granularity is resampled and lagged on its own, so a
// short history at one granularity never affects another. The caller is
// expected to have dropped incomplete bars.
func CalculatePerformance(minuteBars model.Series) model.FeatureVector {
	var fv model.FeatureVector
	for _, g := range model.Granularities {
		lags := ExtractLags(Resample(minuteBars, g), model.LagCount)
		for i, v := range lags {
			fv[model.FeatureKey{Granularity: g, Lag: i + 1}.Index()] = v
		}
	}
	return fv
}
