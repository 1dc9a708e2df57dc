package models

// Requests for dashboard HTTP endpoints. Defined in domain for consistency and reuse.

type BridgedDataRequest struct {
	Engine string `param:"engine" query:"engine" json:"engine" validate:"required"`
	Format string `query:"format" json:"format" default:"tile" validate:"oneof=tile indicator chart"`
}

type ReportsRequest struct {
	Engine string `query:"engine" json:"engine" validate:"required"`
	N      int    `query:"n" json:"n" default:"100" validate:"gte=1,lte=2000"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
}
