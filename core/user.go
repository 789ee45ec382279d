package core

type (
	// User is identified by its mobile number.
	User struct {
		MobileNumber string `json:"mobileNumber"`
		FirstName    string `json:"firstName"`
		LastName     string `json:"lastName"`
		CountryCode  string `json:"countryCode,omitempty"`
	}
)
