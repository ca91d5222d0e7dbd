package prompt

import (
	"encoding/json"
	"fmt"
)

// DataQualitySystem asks for red flags, insights and a quality score.
const DataQualitySystem = `You are an expert ERP data analyst. Analyze the provided ERP data and ratios to identify data quality issues, anomalies, and business red flags. The data may be provided in standard ERP modules or in arbitrary metric tables; make reasonable inferences and note assumptions.

Respond ONLY with a valid JSON object in this exact format:
{
    "red_flags": [
        {
            "severity": "high|medium|low",
            "category": "sales|warehouse|finance|crm|operations|general",
            "metric": "metric name",
            "value": numeric_value,
            "threshold": benchmark_value,
            "description": "Clear explanation of the issue"
        }
    ],
    "key_insights": [
        {
            "category": "sales|warehouse|finance|crm|operations|general",
            "title": "Brief insight title",
            "description": "Detailed insight description",
            "impact": "high|medium|low"
        }
    ],
    "data_quality_score": 0-100,
    "summary": "Brief overall assessment"
}

Severity thresholds:
- Cancellation rate > 15% = high, > 10% = medium
- Stockout rate > 10% = high, > 5% = medium
- Dead stock rate > 20% = high, > 15% = medium
- Net profit margin < 5% = high, < 10% = medium
- Conversion rate < 15% = high, < 20% = medium`

// DataQualityUser embeds the normalized snapshot and its ratios.
func DataQualityUser(normalized json.RawMessage, ratios Ratios) string {
	r, _ := json.Marshal(ratios)
	return fmt.Sprintf(`Analyze this ERP data and pre-calculated ratios:

Raw Data:
%s

Calculated Ratios:
%s

Provide your analysis as JSON.`, indent(normalized), indent(r))
}
