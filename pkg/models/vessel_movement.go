package models

import "time"

// VesselParticulars is the identifying block every upstream movement record
// must carry. Records without it are rejected during transform.
type VesselParticulars struct {
	VesselName string `json:"vesselName"`
	CallSign   string `json:"callSign"`
	IMONumber  string `json:"imoNumber"`
	Flag       string `json:"flag"`
}

// VesselMovement is one element of the upstream payload array. Only the time
// field matching the dataset is populated; the others stay empty.
type VesselMovement struct {
	VesselParticulars *VesselParticulars `json:"vesselParticulars"`
	ArrivedTime       string             `json:"arrivedTime,omitempty"`
	DepartedTime      string             `json:"departedTime,omitempty"`
	DueToArriveTime   string             `json:"duetoArriveTime,omitempty"`
	LocationFrom      string             `json:"locationFrom,omitempty"`
	LocationTo        string             `json:"locationTo,omitempty"`
}

// CanonicalRow is a transformed movement record ready for staging: identifying
// fields flattened, the event time converted to a UTC instant, and location
// codes substituted where a dictionary was supplied.
type CanonicalRow struct {
	VesselName   string     `db:"vessel_name"`
	Callsign     string     `db:"callsign"`
	IMO          string     `db:"imo"`
	Flag         string     `db:"flag"`
	EventTime    *time.Time `db:"event_time"`
	LocationFrom *string    `db:"location_from"`
	LocationTo   *string    `db:"location_to"`
	FetchedAt    time.Time  `db:"fetched_at"`
}
