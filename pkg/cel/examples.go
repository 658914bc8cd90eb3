package cel

// ExpressionExamples are expressions accepted by the condition DSL "expr" operator.
var ExpressionExamples = map[string]string{
	"simple_equals":       `event.status == "active"`,
	"numeric_greater":     `event.amount > 100.0`,
	"string_contains":     `event.email.contains("@example.com")`,
	"in_list":             `event.status in ["active", "pending"]`,
	"range_check":         `event.amount >= 10.0 && event.amount <= 10000.0`,
	"nested_field":        `event.user.tier == "premium"`,
	"has_field":           `has(event.email) && event.email != ""`,
	"list_size":           `size(event.tags) > 1`,
	"regex":               `event.country.matches("^(US|CA)$")`,
	"combined_conditions": `(event.status == "active" || event.status == "pending") && event.amount > 50.0`,
}
