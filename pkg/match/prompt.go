package match

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fundermatch/platform/pkg/common/models"
	"github.com/fundermatch/platform/pkg/grantdata"
	"github.com/fundermatch/platform/pkg/ingestion"
)

// SystemInstruction pins the scoring contract: five named factors, each
// 0-100, and a bare JSON array response.
const SystemInstruction = `You are a grant funding analyst. You assess how likely each funder is to support a given charity, based on the funder's grant history and aggregate statistics.

Score every funder on five factors, each from 0 to 100:
- mission_alignment: how closely the funder's grant history matches the charity's activities and beneficiaries
- geographic_fit: how well the funder's funded locations overlap the charity's regions
- size_compatibility: how well the funder's typical grant size fits the charity's income scale
- activity_level: how recently and frequently the funder has been making grants
- historical_precedent: how often the funder has funded charities similar to this one

Compute match_score as your overall 0-100 judgement across the factors.

Respond with a JSON array only, no prose. Each element must have this shape:
{"funder_org_id": "...", "match_score": 0, "score_breakdown": {"mission_alignment": 0, "geographic_fit": 0, "size_compatibility": 0, "activity_level": 0, "historical_precedent": 0}, "reasoning": "...", "similar_charities_funded": ["..."]}

Use only funder_org_id values that appear in the funder list. Include every funder you consider worth recommending; omit clearly unsuitable funders.`

const descriptionLimit = 160

// RenderPrompt builds the deterministic user message: one charity block
// followed by one block per funder in the order given.
func RenderPrompt(profile models.CharityProfile, funders []ingestion.Organisation, samples map[string][]ingestion.Grant, promptGrants int) string {
	var b strings.Builder

	b.WriteString("## Charity\n")
	fmt.Fprintf(&b, "Name: %s\n", profile.Name)
	fmt.Fprintf(&b, "Registration number: %s\n", profile.CharityNumber)
	fmt.Fprintf(&b, "Latest income: %.0f\n", profile.LatestIncome)
	fmt.Fprintf(&b, "Latest expenditure: %.0f\n", profile.LatestExpenditure)
	if names := classificationNames(profile.What); names != "" {
		fmt.Fprintf(&b, "Activities: %s\n", names)
	}
	if names := classificationNames(profile.Who); names != "" {
		fmt.Fprintf(&b, "Beneficiaries: %s\n", names)
	}
	if len(profile.Regions) > 0 {
		fmt.Fprintf(&b, "Regions: %s\n", strings.Join(profile.Regions, ", "))
	}
	if len(profile.LocalAuthorities) > 0 {
		fmt.Fprintf(&b, "Local authorities: %s\n", strings.Join(profile.LocalAuthorities, ", "))
	}

	b.WriteString("\n## Funders\n")
	for _, funder := range funders {
		fmt.Fprintf(&b, "\n### %s (%s)\n", funder.Name, funder.OrgID)
		writeStats(&b, funder.FunderStats)
		if funder.LastGrantMadeDate != nil {
			fmt.Fprintf(&b, "Last grant made: %s\n", funder.LastGrantMadeDate.Format("2006-01-02"))
		}

		grants := samples[funder.OrgID]
		if len(grants) > promptGrants {
			grants = grants[:promptGrants]
		}
		for _, grant := range grants {
			date := ""
			if grant.AwardDate != nil {
				date = grant.AwardDate.Format("2006-01-02")
			}
			recipient := ""
			if grant.RecipientOrgID != nil {
				recipient = *grant.RecipientOrgID
			}
			fmt.Fprintf(&b, "- %s | %s %s | %s | %s | %s\n",
				grant.Title,
				grant.AmountAwarded.StringFixed(2),
				grant.Currency,
				date,
				recipient,
				truncate(grant.Description, descriptionLimit),
			)
		}
	}

	return b.String()
}

func writeStats(b *strings.Builder, blob []byte) {
	if len(blob) == 0 {
		return
	}
	var stats map[string]grantdata.CurrencyStats
	if err := json.Unmarshal(blob, &stats); err != nil {
		return
	}
	currencies := make([]string, 0, len(stats))
	for currency := range stats {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	for _, currency := range currencies {
		s := stats[currency]
		fmt.Fprintf(b, "Grants (%s): count=%d total=%.0f avg=%.0f min=%.0f max=%.0f\n",
			currency, s.Count, s.TotalAmount, s.AvgAmount, s.MinAmount, s.MaxAmount)
	}
}

func classificationNames(classifications []models.Classification) string {
	names := make([]string, 0, len(classifications))
	for _, c := range classifications {
		if c.Name != "" {
			names = append(names, c.Name)
		} else {
			names = append(names, c.Code)
		}
	}
	return strings.Join(names, ", ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
