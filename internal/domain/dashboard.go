package domain

// DashboardStats carries the headline counters shown on the dashboard. All
// figures cover active records only.
type DashboardStats struct {
	TotalObras        int64   `json:"totalObras"`
	PlanesActivos     int64   `json:"planesActivos"`
	InversionTotal    float64 `json:"inversionTotal"`
	RiesgosPendientes int64   `json:"riesgosPendientes"`
}

// ObrasPorEstado is one row of the obras-by-state breakdown.
type ObrasPorEstado struct {
	Estado   string `json:"estado"`
	Cantidad int64  `json:"cantidad"`
}

// InversionPorRubro is one row of the investment-by-rubro breakdown.
type InversionPorRubro struct {
	Rubro     string  `json:"rubro"`
	Inversion float64 `json:"inversion"`
	Cantidad  int64   `json:"cantidad"`
}
