package header_test

import (
	"fmt"

	"docsplit/internal/header"
)

// Example shows validation of a clean and a misread header.
func Example() {
	v := header.NewValidator(header.DefaultGrammar())

	for _, text := range []string{"B-HK-WFE-S17975643", "b - hk - wfe - 517975643", "B-HK-WFE-S1797564"} {
		res := v.Validate(text)
		fmt.Printf("%s score=%d strict=%v\n", res.Normalized, res.Score, res.StrictValid)
	}
	// Output:
	// B-HK-WFE-S17975643 score=150 strict=true
	// B-HK-WFE-S17975643 score=150 strict=true
	// B-HK-WFE-S1797564 score=89 strict=false
}
