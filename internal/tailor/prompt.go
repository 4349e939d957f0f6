package tailor

import "strings"

// SystemInstruction is sent as the system message with every tailoring request.
const SystemInstruction = "You are a helpful and professional career assistant."

const tasks = `You are an expert ATS CV tailoring assistant. Perform the following:
1. Compare the CV and the Job Description and calculate a matching score (0-100) based on ATS relevance.
2. List important keywords from the Job Description that are missing in the CV.
3. Tailor the CV by changing 2-3 lines in work experience and projects to better match the Job Description, preserving structure, tone and formatting. Use the STAR method for experience changes and put tailored experience first, then the original.
4. Write a one-page cover letter for this role.
`

// BuildPrompt returns the header-format instruction with both inputs embedded verbatim.
// Each reply header appears exactly once, inside the reply template.
func BuildPrompt(resume, job string) string {
	var b strings.Builder
	b.WriteString(tasks)
	b.WriteString("\nReturn the response in this format:\n---\n")
	b.WriteString(HeaderScore + " <number>\n\n")
	b.WriteString(HeaderKeywords + "\n- keyword1\n- keyword2\n...\n\n")
	b.WriteString(HeaderTailoredCV + "\n<full tailored CV>\n\n")
	b.WriteString(HeaderCoverLetter + "\n<cover letter text>\n---\n")
	b.WriteString("CV:\n")
	b.WriteString(resume)
	b.WriteString("\n\nJob Description:\n")
	b.WriteString(job)
	b.WriteString("\n")
	return b.String()
}

// BuildStructuredPrompt asks for a single JSON object with a fixed key order.
func BuildStructuredPrompt(resume, job string) string {
	var b strings.Builder
	b.WriteString(tasks)
	b.WriteString(`
Respond with a single JSON object and nothing else. Use exactly these keys, in this order:
{
  "matchingScore": <integer 0-100>,
  "missingKeywords": ["keyword1", "keyword2"],
  "tailoredCv": "<full tailored CV as plain text>",
  "coverLetter": "<cover letter as plain text>"
}
Escape newlines and quotes inside strings as JSON requires. Do not wrap the object in markdown.
`)
	b.WriteString("\n<cv>\n")
	b.WriteString(resume)
	b.WriteString("\n</cv>\n\n<job_description>\n")
	b.WriteString(job)
	b.WriteString("\n</job_description>\n")
	return b.String()
}
