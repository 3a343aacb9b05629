package router

const (
	promptWelcome = "Welcome to the Voter Help Line! We connect you with trained volunteers " +
		"who can answer questions about registering and voting. Message and data rates may apply. " +
		"Volunteers are not attorneys and cannot give legal advice. " +
		"Reply AGREE to confirm you understand and continue."

	promptDisclaimerRetry = "To continue, please reply AGREE to confirm you have read the message above."

	promptRegion = "Thanks! Which U.S. state are you asking about? Please reply with the state name, e.g. North Carolina or NC."

	promptRegionRetry = "Sorry, we didn't recognize that state. Please reply with a U.S. state name or its two-letter abbreviation."

	promptConnecting = "Great, we're connecting you with a volunteer who can help with %s. They'll reply here shortly."

	promptConnectingOverflow = "We're connecting you with one of our national volunteers. They'll reply here shortly."

	promptUnroutable = "Sorry, we couldn't reach a volunteer for %s just now. " +
		"Please reply with your state again in a moment."

	promptWelcomeBack = "Welcome back to the Voter Help Line! A volunteer will be with you shortly."

	noteStale = "This session predates session tracking and can't relay replies. " +
		"Send !resume to pick it back up."

	noteInactiveThread = "This thread is no longer active for the voter; the session moved to %s."

	noteSendFailed = "Your message could not be delivered to the voter: %v"

	noteResumed = "Session resumed."

	noteRerouted = "Session rerouted to %s."

	noteEnded = "Session ended."

	noteCommandFailed = "Command %s failed: %v"

	noteUnroutable = "Could not route the voter to a %s pod: %v"
)
