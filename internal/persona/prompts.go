package persona

import (
	"fmt"
	"strings"
)

// systemTemplate wraps the persona description with the hard rules
// every response follows. The format verbs are the persona
// description, the style directives, and the conversation context
// block (summary + memories + commitments).
const systemTemplate = `%s
Rules:
- Never break character or mention being an AI, a model, or a system.
- Never invent memories. Only reference what the context block states.
- One emoji max. No lists, no headings. Plain chat messages only.

%s

Context:
%s`

// SystemPrompt builds the persona system prompt for draft calls.
func SystemPrompt(p Persona, styleDirectives, context string) string {
	if context == "" {
		context = "(first conversation, no history yet)"
	}
	return fmt.Sprintf(systemTemplate, p.describe(), styleDirectives, context)
}

// planTemplate asks a fast model for a structured response plan. The
// format verbs are the act label, the emotion summary, the context
// block, and the user's message.
const planTemplate = `Plan a reply for a casual companion chat. Do not write the reply.
User's turn is a "%s" (emotion: %s).

Context:
%s

User said: %s

Respond with a single JSON object, nothing else:
{"intent":"respond","tone":"warm","brevity":"short|medium|long","empathy":true,"beats":["..."],"avoid":[],"keywords":["..."]}`

// PlanPrompt builds the planning prompt.
func PlanPrompt(act, emotion, context, userText string) string {
	if context == "" {
		context = "(none)"
	}
	return fmt.Sprintf(planTemplate, act, emotion, context, userText)
}

// draftTemplate turns a plan into drafting instructions appended to
// the persona system prompt. Verbs: tone, beats, brevity word cap,
// keywords, and the user's message.
const draftTemplate = `Write your reply.
Tone: %s. Cover these beats in order: %s.
Stay under %d words. Work in naturally: %s.

User said: %s`

// DraftPrompt builds the user-role message for the quality draft call.
func DraftPrompt(tone string, beats []string, wordCap int, keywords []string, userText string) string {
	if tone == "" {
		tone = "warm"
	}
	b := strings.Join(beats, ", ")
	if b == "" {
		b = "respond naturally"
	}
	k := strings.Join(keywords, ", ")
	if k == "" {
		k = "nothing specific"
	}
	return fmt.Sprintf(draftTemplate, tone, b, wordCap, k, userText)
}

// editTemplate rewrites a draft for spoken cadence. Verbs: the avoid
// list, the style directives, and the draft.
const editTemplate = `Rewrite this message so it sounds like a real person typing in chat.
Keep the meaning. Cut filler. Vary sentence length.
Never use these phrases: %s.
%s

Message:
%s

Rewritten message only, no commentary:`

// EditPrompt builds the fast edit-pass prompt.
func EditPrompt(avoid []string, styleDirectives, draft string) string {
	a := strings.Join(avoid, "; ")
	if a == "" {
		a = "(none)"
	}
	return fmt.Sprintf(editTemplate, a, styleDirectives, draft)
}

// reEditTemplate targets only the dimensions that failed rating.
// Verbs: the failing dimensions and the current text.
const reEditTemplate = `This chat message needs fixing. It scored poorly on: %s.
Fix only those problems. Keep everything that already works.

Message:
%s

Fixed message only, no commentary:`

// ReEditPrompt builds the targeted re-edit prompt.
func ReEditPrompt(failing []string, text string) string {
	return fmt.Sprintf(reEditTemplate, strings.Join(failing, ", "), text)
}

// extractionTemplate mines a finished turn for memories worth keeping.
// Verbs: user message and assistant reply.
const extractionTemplate = `Extract things worth remembering about the user from this exchange.
Valid types: fact, preference, plan, promise, inside_joke, sentiment.
Only extract what the user actually said or clearly agreed to.

Return JSON only:
{"memories":[{"type":"fact","content":"..."}]}
If nothing is worth keeping: {"memories":[]}

User: %s
Assistant: %s

JSON:`

// ExtractionPrompt builds the memory-extraction prompt.
func ExtractionPrompt(userMsg, assistantMsg string) string {
	return fmt.Sprintf(extractionTemplate, userMsg, assistantMsg)
}

// summaryTemplate refreshes the rolling conversation summary. Verbs:
// the prior summary and the recent transcript.
const summaryTemplate = `Update the running summary of this conversation.
Keep it under 120 words. Preserve names, plans, and emotional threads.

Previous summary:
%s

Recent messages:
%s

Updated summary:`

// SummaryPrompt builds the rolling-summary prompt.
func SummaryPrompt(previous, transcript string) string {
	if previous == "" {
		previous = "(none yet)"
	}
	return fmt.Sprintf(summaryTemplate, previous, transcript)
}

// actFallbackTemplate asks a fast model to label an unclassifiable
// turn. Verb: the user's message.
const actFallbackTemplate = `Label this chat message with exactly one word from:
greeting, repair, ack, question, plan, feedback, share, unknown

Message: %s

Label:`

// ActFallbackPrompt builds the dialog-act fallback prompt.
func ActFallbackPrompt(text string) string {
	return fmt.Sprintf(actFallbackTemplate, text)
}

// apologyTemplate is the in-persona degradation message used when no
// provider is reachable. Verb: the persona name is not interpolated;
// the message stays generic enough for any skin.
const apologyFallback = `ugh, my brain just glitched for a sec 😅 say that again? I promise I'm listening`

// ApologyFallback returns the fallback message for total provider
// failure. It is delivered through the normal stream so the client
// cannot tell it apart from a generated reply.
func ApologyFallback() string {
	return apologyFallback
}
