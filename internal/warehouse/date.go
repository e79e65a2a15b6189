package warehouse

import "salesdw/internal/model"

// DateKey is the surrogate key of a calendar day: year*10000 + month*100 + day.
// The fact builder and the date dimension both derive keys through it.
func DateKey(d model.Date) int64 {
	return int64(d.Year())*10000 + int64(d.Month())*100 + int64(d.Day())
}

// DateBounds returns the earliest and latest day among order dates and
// present ship dates. ok is false when orders carry no valid date.
func DateBounds(orders []model.Order) (dmin, dmax model.Date, ok bool) {
	consider := func(d model.Date) {
		if !d.Valid {
			return
		}
		if !ok {
			dmin, dmax, ok = d, d, true
			return
		}
		if d.Before(dmin) {
			dmin = d
		}
		if dmax.Before(d) {
			dmax = d
		}
	}
	for _, o := range orders {
		consider(o.OrderDate)
		consider(o.ShipDate)
	}
	return dmin, dmax, ok
}

// GenerateDates yields one row per day from dmin to dmax inclusive. An
// inverted or absent range yields nothing.
func GenerateDates(dmin, dmax model.Date) []model.DimDate {
	if !dmin.Valid || !dmax.Valid || dmax.Before(dmin) {
		return nil
	}
	var out []model.DimDate
	for d := dmin; !dmax.Before(d); d = d.AddDays(1) {
		wd := d.ISOWeekday()
		out = append(out, model.DimDate{
			DateSK:    DateKey(d),
			FullDate:  d,
			Year:      d.Year(),
			Quarter:   d.Quarter(),
			Month:     int(d.Month()),
			Day:       d.Day(),
			DayOfWeek: wd,
			IsWeekend: wd >= 6,
		})
	}
	return out
}
