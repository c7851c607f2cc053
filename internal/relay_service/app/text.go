package app

import "fmt"

// Everything reporters and members hear or read. Never include internal error detail here.
const (
	textVoiceNoEvent      = "No event was found for this number. Please reach out to the event staff directly for assistance."
	textVoiceBlocked      = "This number is currently unavailable."
	textVoiceNoMembers    = "Unfortunately, there are no verified members for this event's hotline. Please reach out to the event staff directly for assistance."
	textVoiceAnswerError  = "Oh no, an error occurred and we couldn't find the event or member entry for this call."
	textSMSNoEvent        = "Sorry, there doesn't seem to be an event configured for that number."
	textSMSNoMembers      = "Sorry, there aren't any organizers currently available. Please reach out to the event staff in person for assistance."
	textSMSNoRelays       = "Sorry, there aren't any relays available to send your message. You can try calling the hotline or reaching out to the event staff in person for assistance."
	textSMSOptOut         = "Reply STOP at any time to opt-out of receiving messages from this conversation."
	textSMSStopCompleted  = "You've been successfully unsubscribed, you'll no longer receive messages from this number."
	textSMSLeftChat       = "This participant has chosen to leave the chat."
	textVerificationReply = "Thank you, your number is confirmed."

	reporterName = "Reporter"
)

func textVoiceDefaultGreeting(eventName string) string {
	return fmt.Sprintf("Thank you for calling the Code of Conduct hotline for %s. This will dial all of the hotline members and put you on hold until one is able to answer.", eventName)
}

func textVoiceAnswerAnnounce(memberName string) string {
	return fmt.Sprintf("%s is joining this call.", memberName)
}

func textVoiceAnswerGreeting(memberName, eventName string) string {
	return fmt.Sprintf("Hello %s, connecting you to %s.", memberName, eventName)
}

func textSMSDefaultGreeting(eventName string) string {
	return fmt.Sprintf("You have started a new chat with the organizers of %s.", eventName)
}

func textSMSIntroduction(eventName, reporterLast4 string) string {
	return fmt.Sprintf("This is the beginning of a new chat for %s, the last 4 digits of the reporter's number are %s. %s", eventName, reporterLast4, textSMSOptOut)
}

func textVerificationChallenge(eventName string) string {
	return fmt.Sprintf("You've been added as a member of the %s event on conducthotline.com. Reply with YES or OK to confirm.", eventName)
}
