package models

// TripFilter represents filter parameters for querying trips
type TripFilter struct {
	Type      string `form:"type"`
	Status    string `form:"status"`
	SyncState string `form:"syncState"`
	StartTime int64  `form:"startTime"` // Unix timestamp in milliseconds
	EndTime   int64  `form:"endTime"`   // Unix timestamp in milliseconds
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}
