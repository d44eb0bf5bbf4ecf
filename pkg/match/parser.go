package match

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fundermatch/platform/pkg/common/models"
	"github.com/fundermatch/platform/pkg/ingestion"
	"github.com/go-playground/validator/v10"
)

// ParseError marks a malformed or untrustworthy scoring response. An item
// referencing a funder outside the queried set fails the whole parse — a
// silent partial result would misrepresent completeness.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "match: parse error: " + e.Reason
}

var validate = validator.New()

// ParseMatches decodes the scoring response into validated match records.
// An optional surrounding markdown code fence is tolerated.
func ParseMatches(raw string, funders []ingestion.Organisation) ([]models.FunderMatch, error) {
	cleaned := stripCodeFence(raw)

	var matches []models.FunderMatch
	if err := json.Unmarshal([]byte(cleaned), &matches); err != nil {
		return nil, &ParseError{Reason: "invalid JSON: " + err.Error()}
	}

	nameByID := make(map[string]string, len(funders))
	for _, funder := range funders {
		nameByID[funder.OrgID] = funder.Name
	}

	for i := range matches {
		if err := validate.Struct(&matches[i]); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid match record %d: %v", i, err)}
		}
		name, known := nameByID[matches[i].FunderOrgID]
		if !known {
			return nil, &ParseError{Reason: "unknown funder_org_id " + matches[i].FunderOrgID}
		}
		if matches[i].FunderName == "" {
			matches[i].FunderName = name
		}
	}
	return matches, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	newline := strings.IndexByte(s, '\n')
	if newline < 0 {
		return ""
	}
	s = strings.TrimSpace(s[newline+1:])
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
