package models

type Country struct {
	Name         string `json:"name"`
	ISOAlpha2    string `json:"iso_alpha2"`
	ISOAlpha3    string `json:"iso_alpha3"`
	DialCode     string `json:"dial_code"`
	CurrencyCode string `json:"currency_code"`
}

type Language struct {
	Name     string `json:"name"`
	ISO6391  string `json:"iso_639_1"`
	Native   string `json:"native_name,omitempty"`
}

type Currency struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	DecimalPlaces int    `json:"decimal_places"`
}
