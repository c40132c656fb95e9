package pipeline

import (
	"fmt"
	"strings"
)

// Stage is one agent of the pipeline.
type Stage struct {
	Name         string
	Role         string
	Goal         string
	Instructions string
	// Context lists earlier stages whose output is included in the prompt.
	Context []string
	// ReadsDocument stages receive the extracted document text.
	ReadsDocument bool
}

const (
	StageFinancialAnalysis = "financial_analysis"
	StageInvestmentAdvice  = "investment_advice"
	StageRiskAssessment    = "risk_assessment"
	StageExecutiveSummary  = "executive_summary"
)

// DefaultStages 财务分析 -> 投资建议 -> 风险评估 -> 执行摘要
func DefaultStages() []Stage {
	return []Stage{
		{
			Name:          StageFinancialAnalysis,
			Role:          "Senior Financial Analyst",
			Goal:          "Extract key financial data from the document and give an objective analysis of it.",
			ReadsDocument: true,
			Instructions: `Analyze the financial document below.
1. Extract key metrics such as revenue, profit margins, net income and EPS in a clear "Metric: value" format.
2. Describe trends such as growth rates and year-over-year changes.
3. Give a short SWOT analysis with 4-5 bullet points per category.
Only provide objective analysis. Do not give investment advice or a risk assessment.`,
		},
		{
			Name:    StageInvestmentAdvice,
			Role:    "Investment Strategy Expert",
			Goal:    "Turn the financial analysis into clear, evidence-backed investment recommendations.",
			Context: []string{StageFinancialAnalysis},
			Instructions: `Based on the financial analysis, produce investment recommendations covering:
1. 3-4 key financial health indicators.
2. Growth prospects and valuation.
3. A clear buy/hold/sell recommendation with reasoning.
4. Specific action items that answer the user's query.`,
		},
		{
			Name:    StageRiskAssessment,
			Role:    "Financial Risk Assessment Specialist",
			Goal:    "Give a balanced, data-driven view of the investment risks.",
			Context: []string{StageFinancialAnalysis, StageInvestmentAdvice},
			Instructions: `Evaluate the risks of the recommended investment:
1. An overall risk level (Low/Medium/High).
2. Identified risks grouped by type: financial, market, operational.
3. Likelihood and potential portfolio impact of each risk.
4. A short risk profile summary with timeline considerations.
Stay objective and avoid sensational language.`,
		},
		{
			Name:    StageExecutiveSummary,
			Role:    "Executive Report Writer",
			Goal:    "Consolidate all prior work into a single decision-ready report.",
			Context: []string{StageFinancialAnalysis, StageInvestmentAdvice, StageRiskAssessment},
			Instructions: `Write the final report with these sections:
1. Executive Summary (2-3 paragraphs of key findings)
2. Financial Health Overview
3. Investment Recommendation
4. Risk Profile Summary with overall rating
5. Action Items and Timeline
Use clear professional language, keep recommendations consistent, and address the user's query directly.`,
		},
	}
}

// SystemPrompt 由角色和目标构成
func (s Stage) SystemPrompt() string {
	return fmt.Sprintf("You are a %s. %s", s.Role, s.Goal)
}

// UserPrompt 拼接任务说明、用户问题、文档和前序阶段输出
func (s Stage) UserPrompt(query, document string, outputs map[string]string) string {
	var b strings.Builder
	b.WriteString(s.Instructions)
	b.WriteString("\n\nUser query: ")
	b.WriteString(query)

	if s.ReadsDocument {
		b.WriteString("\n\nFinancial document:\n")
		b.WriteString(document)
	}

	for _, name := range s.Context {
		out, ok := outputs[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n\n### %s\n%s", titleFor(name), out)
	}

	return b.String()
}

func titleFor(stage string) string {
	words := strings.Split(stage, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
