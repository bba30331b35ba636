package utils

// readingRanges are the plausible bounds for each sensor type. Temperatures
// are Fahrenheit.
var readingRanges = map[string][2]float64{
	"temperature":   {32, 120},
	"humidity":      {30, 90},
	"co2":           {250, 2000},
	"light":         {0, 100000},
	"soil_moisture": {5, 95},
	"wind_speed":    {0, 60},
}

// CheckAbnormality determines whether a reading falls outside the expected
// range for its sensor type. Unknown types are never abnormal.
func CheckAbnormality(sensorType string, value float64) bool {
	r, ok := readingRanges[sensorType]
	if !ok {
		return false
	}
	return value < r[0] || value > r[1]
}
