package render

import "github.com/slack-go/slack"

const CallbackErrorModal = "error_modal"

const GenericErrorText = "An error occurred, please try again later."

// ErrorModal shows heading and the error detail with HTML stripped.
func ErrorModal(callbackID, heading, detail string) slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: callbackID,
		Title:      plain("Error"),
		Close:      plain("Close"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			header(heading),
			slack.NewDividerBlock(),
			section("*Error Details:*\n" + codeBlock(StripHTML(detail))),
		}},
	}
}

// GenericError hides the cause from the user.
func GenericError() slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: CallbackErrorModal,
		Title:      plain("Error"),
		Close:      plain("Close"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			section(codeBlock(GenericErrorText)),
		}},
	}
}
