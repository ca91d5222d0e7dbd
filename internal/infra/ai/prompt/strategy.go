package prompt

import (
	"encoding/json"
	"fmt"
)

// StrategySystem asks for the top 5 problems, quick wins and initiatives.
const StrategySystem = `You are a senior business strategist. Based on the ERP data and data quality insights, identify the top 5 business problems, their root causes, and recommended actions. The ERP data may be a generic metric table; infer business context as needed and state assumptions.

Respond ONLY with a valid JSON object in this exact format:
{
    "executive_summary": "2-3 sentence summary of overall business health",
    "top_problems": [
        {
            "rank": 1-5,
            "problem": "Clear problem statement",
            "category": "sales|warehouse|finance|crm|operations|general",
            "root_cause": "Detailed explanation of why this is happening",
            "financial_impact": "Estimated monthly/quarterly impact in currency",
            "recommended_action": "Specific, actionable step",
            "action_priority": "critical|high|medium|low",
            "estimated_effort": "hours|days|weeks",
            "expected_roi": "percentage or currency estimate"
        }
    ],
    "quick_wins": [
        {
            "action": "Quick action description",
            "impact": "expected outcome",
            "effort": "low"
        }
    ],
    "strategic_initiatives": [
        {
            "initiative": "Long-term initiative name",
            "description": "Description",
            "timeline": "1-3 months|3-6 months|6-12 months",
            "expected_impact": "Description"
        }
    ]
}`

func StrategyUser(normalized, cleaning json.RawMessage) string {
	return fmt.Sprintf(`Generate business strategy based on:

ERP Data:
%s

Data Quality Insights:
%s

Provide your strategy as JSON.`, indent(normalized), indent(cleaning))
}
