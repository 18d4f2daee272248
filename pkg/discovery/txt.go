package discovery

import (
	"strings"
)

// TXT keys carrying the device identifier.
const (
	TXTDeviceID  = "deviceid"
	TXTCompanion = "rpBA"
)

// ParseTXT parses raw TXT record strings into a map. Records without '='
// are kept as keys with an empty value.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string, len(records))
	for _, record := range records {
		key, value, _ := strings.Cut(record, "=")
		if key != "" {
			result[key] = value
		}
	}
	return result
}

// Identifier returns the device identifier advertised for a service:
// deviceid for AirPlay, rpBA for Companion-Link. RAOP devices without
// deviceid are identified by the MAC prefix of their instance name
// ("AABBCCDDEEFF@Name").
func Identifier(serviceType ServiceType, instance string, txt map[string]string) string {
	switch serviceType {
	case ServiceTypeCompanion:
		return txt[TXTCompanion]
	case ServiceTypeAirPlay:
		return txt[TXTDeviceID]
	case ServiceTypeRAOP:
		if id := txt[TXTDeviceID]; id != "" {
			return id
		}
		prefix, _, ok := strings.Cut(instance, "@")
		if !ok || len(prefix) != 12 {
			return ""
		}
		return formatMAC(prefix)
	}
	return ""
}

// formatMAC inserts colons into a 12 digit hex string.
func formatMAC(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strings.ToUpper(s[i : i+2]))
	}
	return b.String()
}
