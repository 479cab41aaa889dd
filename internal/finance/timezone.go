package finance

import "time"

// istLocation returns Asia/Kolkata, falling back to a fixed +05:30 zone if tzdata is missing.
func istLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}
