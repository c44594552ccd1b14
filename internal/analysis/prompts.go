package analysis

import "fmt"

func commentaryPrompt(summary string) string {
	return fmt.Sprintf(`You are a professional financial analyst. Based on the figures below, write an objective, concise assessment (about 3-4 paragraphs) of the company's financial position. Focus on growth, changes in asset structure and the current ratio.

Raw data and indicators:
%s`, summary)
}

func chatInstruction(summary string) string {
	return fmt.Sprintf(`You are a professional financial analysis assistant. The user uploaded a balance sheet, analysed as follows:
%s

Answer the user's questions about this data. For general questions unrelated to the data, answer as a finance expert.
Do not reproduce the full raw data above; use it only to analyse and answer.`, summary)
}
