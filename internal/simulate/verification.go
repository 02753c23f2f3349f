package simulate

import (
	"errors"
	"fmt"
)

// ErrVerification is returned when the service answers inconsistently.
var ErrVerification = errors.New("verification failed")

// Verify checks the answers read back after seeding.
func Verify(sum Summary) error {
	if sum.ReportsRecorded == 0 {
		return fmt.Errorf("%w: no report was recorded", ErrVerification)
	}
	if sum.Stats.Events < int64(sum.ReportsRecorded) {
		return fmt.Errorf("%w: service holds %d events, %d were recorded", ErrVerification, sum.Stats.Events, sum.ReportsRecorded)
	}
	if p := sum.Prediction.Probability; p < 0 || p > 100 {
		return fmt.Errorf("%w: probability %d out of range", ErrVerification, p)
	}
	for i, z := range sum.Best {
		if z.Probability < 0 || z.Probability > 100 {
			return fmt.Errorf("%w: zone %d probability %d out of range", ErrVerification, i, z.Probability)
		}
		if z.Distance > verifyMaxDistance {
			return fmt.Errorf("%w: zone %d is %.0f m away", ErrVerification, i, z.Distance)
		}
	}
	return nil
}
