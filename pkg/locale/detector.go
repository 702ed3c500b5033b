package locale

import "strings"

// DetectRegion maps a business time zone to the phone region used for
// numbers entered without a country code.
func DetectRegion(tz string) string {
	for region, zones := range TimeZoneTags {
		for _, z := range zones {
			if strings.EqualFold(tz, z) {
				return region
			}
		}
	}
	return DefaultRegion
}

func InferCountryFromPhone(phone string) *Country {
	normalized := strings.TrimSpace(phone)

	for _, country := range Countries {
		for _, prefix := range country.PhonePrefixes {
			if strings.HasPrefix(normalized, prefix) {
				c := country
				return &c
			}
		}
	}
	return nil
}
