package services

import "time"

// Clock абстрагирует текущее время для детерминированных тестов
// тихих часов и окон группировки.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
