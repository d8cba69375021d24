package extractor

import "github.com/nyaruka/phonenumbers"

const defaultRegion = "RU"

// IsValid reports whether a normalized phone is a valid Russian number
// according to libphonenumber metadata.
func IsValid(phone string) bool {
	if phone == "" {
		return false
	}
	num, err := phonenumbers.Parse(phone, defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumberForRegion(num, defaultRegion)
}
