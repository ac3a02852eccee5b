package maintenance

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockhold/internal/reservations"
	"github.com/angelmondragon/stockhold/pkg/logger"
)

// ReservationExpiryJobName is the registry name of the expiry sweep.
const ReservationExpiryJobName = "reservation-expiry"

type expirer interface {
	ExpireDue(ctx context.Context) (*reservations.ExpireResult, error)
}

type reservationExpiryJob struct {
	logg    *logger.Logger
	expirer expirer
}

// NewReservationExpiryJob wraps the reservations expiry sweep as a job.
func NewReservationExpiryJob(logg *logger.Logger, svc expirer) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if svc == nil {
		return nil, fmt.Errorf("reservations service required")
	}
	return &reservationExpiryJob{logg: logg, expirer: svc}, nil
}

func (j *reservationExpiryJob) Name() string { return ReservationExpiryJobName }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	result, err := j.expirer.ExpireDue(ctx)
	if err != nil {
		return fmt.Errorf("expire due reservations: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "expired_count", result.ExpiredCount), "reservation expiry sweep complete")
	return nil
}
