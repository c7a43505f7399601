package flow

import "fmt"

// Fixed spoken lines of the interview script. Parameterized lines are
// rendered by the helpers below.
const (
	greetingQuestion = "How are you today?"

	lineGreetingAck      = "Great to hear! Let's begin."
	lineGreetingReprompt = "I can't hear you clearly. Can you please respond - how are you today?"
	lineGreetingGiveUp   = "I'll assume you're doing well. Let's proceed with the interview."

	lineIntroSelf         = "Tell me about yourself."
	lineIntroSelfRephrase = "Could you briefly introduce yourself and tell me about your background?"
	lineIntroRoleRephrase = "What interests you about this position?"
	lineIntroGiveUp       = "Let's move on to the technical questions."

	lineExtensionAck  = "I'd like to explore this topic a bit more."
	lineTechReprompt  = "Take your time. Could you share your thoughts on this?"
	lineEncouragement = "That's very interesting. Let me ask one more question about this."
	lineReengage      = "I understand technical questions can be challenging. Let's try a different approach."

	linePleaseContinue = "Please continue."
	lineApology        = "I apologize, but we've encountered a technical issue. Thank you for your time."
)

func greetingLine(candidateName, roleTitle string) string {
	return fmt.Sprintf("Good morning %s, thank you for joining this interview for the %s position. How are you today?", candidateName, roleTitle)
}

func introRoleQuestion(roleTitle string) string {
	return fmt.Sprintf("Why are you interested in the %s role?", roleTitle)
}

func topicTransition(topic string, project bool) string {
	if project {
		return fmt.Sprintf("I'd like to discuss your %s project.", topic)
	}
	return fmt.Sprintf("Now let's talk about %s.", topic)
}

func closingLine(candidateName string) string {
	return fmt.Sprintf("Thank you, %s. This concludes the interview. We'll be in touch soon.", candidateName)
}
