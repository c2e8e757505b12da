// Пакет model — доменные сущности Open VTB.
package model

import "time"

// DateLayout — формат календарной даты на проводе и в логах.
const DateLayout = "2006-01-02"

// Today возвращает текущую календарную дату (полночь UTC).
func Today(now time.Time) time.Time {
	return TruncateDate(now)
}

// TruncateDate отбрасывает время суток, приводя к UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
