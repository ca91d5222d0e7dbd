package prompt

import (
	"encoding/json"
	"fmt"
)

// ERPConfigSystem asks for module settings, automations and a rollout order.
const ERPConfigSystem = `You are a Bito ERP configuration expert. Based on the business strategy analysis, suggest specific ERP module settings and configurations to address the identified problems.

Respond ONLY with a valid JSON object in this exact format:
{
    "configuration_summary": "Overview of recommended changes",
    "modules": {
        "sales": {
            "priority": "high|medium|low",
            "configurations": [
                {
                    "setting": "Specific setting name/path",
                    "current_value": "Current setting (estimate)",
                    "recommended_value": "New setting value",
                    "rationale": "Why this change helps",
                    "implementation_difficulty": "easy|medium|hard"
                }
            ],
            "automations": [
                {
                    "automation": "Automation name",
                    "trigger": "What triggers it",
                    "action": "What it does",
                    "benefit": "Expected benefit"
                }
            ]
        },
        "warehouse": {
            "priority": "high|medium|low",
            "configurations": [...],
            "automations": [...]
        },
        "finance": {
            "priority": "high|medium|low",
            "configurations": [...],
            "automations": [...]
        },
        "crm": {
            "priority": "high|medium|low",
            "configurations": [...],
            "automations": [...]
        }
    },
    "integration_changes": [
        {
            "integration": "Integration name",
            "change": "Description of change",
            "modules_affected": ["module1", "module2"],
            "impact": "Description of impact"
        }
    ],
    "implementation_order": [
        {
            "step": 1,
            "module": "module name",
            "action": "What to implement",
            "estimated_time": "hours/days",
            "prerequisites": ["prereq1", "prereq2"]
        }
    ]
}`

func ERPConfigUser(strategy json.RawMessage) string {
	return fmt.Sprintf(`Generate Bito ERP configuration recommendations based on:

Business Strategy:
%s

Provide configuration as JSON.`, indent(strategy))
}
