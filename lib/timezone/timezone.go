package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic(err)
	}
}

// force timezone to be IST because the portal's registration windows
// (and our business-hours polling schedule) are defined in local Indian
// time, while the monitor itself may be deployed anywhere.
func Now() time.Time {
	return time.Now().In(Location)
}
