package combats

import "time"

//go:generate mockgen -destination=mock/mock_time_provider.go -package=mockcombats -source=time_provider.go

// TimeProvider stamps snapshots when they are saved
type TimeProvider interface {
	Now() time.Time
}

type systemTime struct{}

func (systemTime) Now() time.Time {
	return time.Now().UTC()
}

// SystemTime returns a TimeProvider backed by the wall clock
func SystemTime() TimeProvider {
	return systemTime{}
}
