package util

import "strings"

// Speed values appear in two forms: the schema form ("SPEED_100G") used in
// the configuration tree, and the table form ("100G") written to the
// driver's PORT table. Vendor commands take the lowercase table form.

// SpeedSchemaToTable converts "SPEED_100G" to "100G". Unrecognized input
// is returned unchanged so callers can surface it in error messages.
func SpeedSchemaToTable(s string) string {
	return strings.TrimPrefix(s, "SPEED_")
}

// SpeedTableToSchema converts "100G" to "SPEED_100G".
func SpeedTableToSchema(s string) string {
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "SPEED_") {
		return s
	}
	return "SPEED_" + strings.ToUpper(s)
}

// SpeedVendorArg converts a schema speed list to the vendor command
// argument form: lowercase table values joined by commas.
func SpeedVendorArg(speeds []string) string {
	parts := make([]string, 0, len(speeds))
	for _, s := range speeds {
		parts = append(parts, strings.ToLower(SpeedSchemaToTable(s)))
	}
	return strings.Join(parts, ",")
}
