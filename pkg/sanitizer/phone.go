package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Regions tried, in order, for numbers written without a country prefix.
var supportedRegions = []string{
	"US",
	"GB",
	"IL",
}

func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	for _, region := range supportedRegions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err == nil && phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164)
		}
	}
	return phone
}
