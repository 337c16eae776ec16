package controllers

// Common request/response types for HTTP controllers

// scalarsReq writes one event holding every entry of Scalars.
type scalarsReq struct {
	Run      string             `json:"run"`
	Step     int64              `json:"step"`
	WallTime float64            `json:"wall_time"`
	Scalars  map[string]float64 `json:"scalars"`
}

// textReq writes one text summary.
type textReq struct {
	Run      string `json:"run"`
	Step     int64  `json:"step"`
	Tag      string `json:"tag"`
	Text     string `json:"text"`
	Markdown bool   `json:"markdown"`
}

// scalarsResp is the body of a series query.
type scalarsResp struct {
	Run    string `json:"run"`
	Tag    string `json:"tag"`
	Points any    `json:"points"`
}
