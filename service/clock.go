package service

import "time"

// Clock supplies the current instant and the current business date.
type Clock interface {
	Now() time.Time
	// Today is midnight of the current business date.
	Today() time.Time
}

// SystemClock reads the wall clock in a fixed business time zone.
type SystemClock struct {
	Location *time.Location
}

func NewSystemClock(timezone string) (*SystemClock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &SystemClock{Location: loc}, nil
}

func (c *SystemClock) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc())
}

func (c *SystemClock) Today() time.Time {
	return startOfDay(c.Now())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
