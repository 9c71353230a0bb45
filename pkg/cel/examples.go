package cel

// RuleExpressionExamples are boolean expressions accepted in route rules, event filters and
// replay filters. The management API returns them as hints.
var RuleExpressionExamples = map[string]string{
	"type_namespace":    `type.startsWith("order.")`,
	"payload_equals":    `payload.status == "active"`,
	"numeric_threshold": `payload.amount > 100`,
	"in_list":           `payload.region in ["eu", "us"]`,
	"nested_field":      `payload.customer.tier == "gold"`,
	"has_field":         `has(payload.email) && payload.email.endsWith("@example.com")`,
	"metadata":          `has(metadata.tenant) && metadata.tenant == "acme"`,
	"recent":            `timestamp > timestamp("2024-01-01T00:00:00Z")`,
	"combined":          `source == "checkout" && (payload.amount >= 10 || payload.vip == true)`,
}

// TransformExpressionExamples are value expressions usable in declared transforms.
var TransformExpressionExamples = map[string]string{
	"uppercase":   `payload.name.upperAscii()`,
	"concatenate": `payload.first_name + " " + payload.last_name`,
	"conditional": `payload.amount > 1000 ? "high" : "normal"`,
	"default":     `has(payload.currency) ? payload.currency : "EUR"`,
	"source_tag":  `source + ":" + type`,
}
