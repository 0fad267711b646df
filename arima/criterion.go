package arima

import "fmt"

// Criterion names an information criterion used to rank fitted models.
// Lower is better for all of them.
type Criterion string

const (
	AIC  Criterion = "aic"
	AICc Criterion = "aicc"
	BIC  Criterion = "bic"
	HQIC Criterion = "hqic"
	// OOB is the mean squared one-step error on a held-out tail.
	OOB Criterion = "oob"
)

// Criteria lists every supported criterion.
var Criteria = []Criterion{AIC, AICc, BIC, HQIC, OOB}

// ParseCriterion validates a criterion name.
func ParseCriterion(s string) (Criterion, error) {
	for _, c := range Criteria {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown information criterion %q", s)
}
