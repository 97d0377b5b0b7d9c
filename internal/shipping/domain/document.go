package domain

// DocumentRequest describes the parcel for the shipping provider.
type DocumentRequest struct {
	OrderID       string
	DealerID      string
	CityRef       string
	WarehouseRef  string
	WeightGrams   int
	Description   string
	DeclaredValue string // provider expects a money string
}

// Document is the provider's answer: the public tracking number (TTN) and
// the provider-internal reference used to fetch the printable label.
type Document struct {
	TrackingNumber string
	DocRef         string
}
