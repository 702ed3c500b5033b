package locale

const (
	DefaultTimezone = "UTC"
	DefaultRegion   = "UZ"
)

type Country struct {
	Code            string // ISO 3166-1 alpha-2
	Name            string
	PhonePrefixes   []string // longest prefix first when prefixes overlap
	DefaultTimezone string   // IANA
}

var (
	Countries = map[string]Country{
		"UZ": {
			Code:            "UZ",
			Name:            "Uzbekistan",
			PhonePrefixes:   []string{"+998", "998"},
			DefaultTimezone: "Asia/Tashkent",
		},
		"IL": {
			Code:            "IL",
			Name:            "Israel",
			PhonePrefixes:   []string{"+972", "972"},
			DefaultTimezone: "Asia/Jerusalem",
		},
		"US": {
			Code:            "US",
			Name:            "United States",
			PhonePrefixes:   []string{"+1"},
			DefaultTimezone: "America/New_York",
		},
	}

	TimeZoneTags = map[string][]string{
		"UZ": {"Asia/Tashkent", "Asia/Samarkand"},
		"IL": {"Asia/Jerusalem", "Israel", "Asia/Tel_Aviv"},
		"US": {"America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles", "US/Eastern", "US/Pacific"},
	}
)
