package domain

import "time"

// Vehicle describes the car shown to a rider once a driver is matched.
type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Color string `json:"color"`
	Plate string `json:"plate"`
	Seats int    `json:"seats"`
}

// Driver is the availability record attached to a driver identity.
type Driver struct {
	ID        string
	Name      string
	Available bool
	Vehicle   Vehicle
	UpdatedAt time.Time
}

// Info returns the display projection of the driver.
func (d *Driver) Info() *DriverInfo {
	return &DriverInfo{ID: d.ID, Name: d.Name, Vehicle: d.Vehicle}
}

// DriverInfo is the driver data embedded in booking snapshots.
type DriverInfo struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Vehicle Vehicle `json:"vehicle"`
}
