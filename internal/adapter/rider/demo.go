package rider

import (
	"context"
	"hash/fnv"

	"food-router/internal/domain"
)

const (
	defaultDemoSpeedKMH = 22.0
	demoMinKM           = 1.5
	demoSpanKM          = 10.5
)

// DemoEstimator gives a deterministic offline estimate for local runs
// without a maps API key. The same pair of addresses always yields the
// same distance in either direction.
type DemoEstimator struct {
	speedKMH float64
}

// NewDemoEstimator creates a DemoEstimator riding at speedKMH.
func NewDemoEstimator(speedKMH float64) *DemoEstimator {
	if speedKMH <= 0 {
		speedKMH = defaultDemoSpeedKMH
	}
	return &DemoEstimator{speedKMH: speedKMH}
}

// Estimate implements Estimator.
func (d *DemoEstimator) Estimate(ctx context.Context, origin, destination string) (domain.EtaPayload, error) {
	if err := ctx.Err(); err != nil {
		return domain.EtaPayload{}, err
	}
	km := demoDistance(normalizeAddress(origin), normalizeAddress(destination))
	return domain.EtaPayload{
		Origin:      origin,
		Destination: destination,
		DistanceKM:  round(km, 2),
		EtaMinutes:  round(km/d.speedKMH*60, 1),
		Source:      SourceDemo,
	}, nil
}

func demoDistance(a, b string) float64 {
	if a == b {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	h := fnv.New32a()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	return demoMinKM + float64(h.Sum32()%1000)/1000*demoSpanKM
}
