package entity

// TelemetryPoint is one hourly sample of simulated production and consumption
type TelemetryPoint struct {
	Time        string  `json:"time"`
	Production  float64 `json:"production"`
	Consumption float64 `json:"consumption"`
	Price       float64 `json:"price"`
}
