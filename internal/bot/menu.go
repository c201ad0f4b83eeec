package bot

import "github.com/lojasmm/menubot/internal/whatsapp"

const (
	defaultPrompt = `Please send "hi" to start the conversation.`
	invalidOption = "Please choose a valid option."
)

var followUps = map[string]string{
	"1": "You selected Option 1. What would you like to know about this option?",
	"2": "You selected Option 2. Can you specify what you are interested in?",
	"3": "You selected Option 3. Please tell me more about your needs.",
}

// FollowUpText maps a menu button id to the question sent back. Unknown ids,
// including the empty one, get a request to pick a valid option.
func FollowUpText(buttonID string) string {
	if text, ok := followUps[buttonID]; ok {
		return text
	}
	return invalidOption
}

func isGreeting(text string) bool {
	return text == "hi" || text == "hello"
}

// mainMenu returns a fresh copy of the three-option menu.
func mainMenu() whatsapp.Interactive {
	return whatsapp.Interactive{
		Type: "button",
		Header: &whatsapp.InteractiveHeader{
			Type: "text",
			Text: "Choose an option",
		},
		Body:   whatsapp.InteractiveText{Text: "Please select one of the following options:"},
		Footer: &whatsapp.InteractiveText{Text: "You can choose one of the options below."},
		Action: whatsapp.InteractiveAction{
			Buttons: []whatsapp.Button{
				replyButton("1", "Option 1"),
				replyButton("2", "Option 2"),
				replyButton("3", "Option 3"),
			},
		},
	}
}

func replyButton(id, title string) whatsapp.Button {
	return whatsapp.Button{
		Type:  "reply",
		Reply: whatsapp.ButtonReply{ID: id, Title: title},
	}
}
