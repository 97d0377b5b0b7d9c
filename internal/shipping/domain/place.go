package domain

// Place is a resolved location reference: a city or a warehouse.
type Place struct {
	Name string `json:"name"`
	Ref  string `json:"ref"`
}
