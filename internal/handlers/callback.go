package handlers

import (
	"fmt"
	"strings"
)

// Callback data is kept short to stay under Telegram's 64 byte limit.
const (
	actionOpen    = "m"
	actionRead    = "read"
	actionBegin   = "begin"
	actionAnswer  = "a"
	actionSubmit  = "submit"
	actionReview  = "review"
	actionRetry   = "retry"
	actionToggle  = "c"
	actionBack    = "back"
	actionRefresh = "list"
)

type callbackAction struct {
	Name string
	Args []string
}

func parseCallback(data string) (callbackAction, bool) {
	parts := strings.Split(data, ":")
	action := callbackAction{Name: parts[0], Args: parts[1:]}

	want := 0
	switch action.Name {
	case actionOpen, actionRead, actionBegin, actionSubmit, actionReview, actionRetry:
		want = 1
	case actionAnswer, actionToggle:
		want = 2
	case actionBack, actionRefresh:
		want = 0
	default:
		return callbackAction{}, false
	}
	if len(action.Args) != want {
		return callbackAction{}, false
	}
	for _, arg := range action.Args {
		if arg == "" {
			return callbackAction{}, false
		}
	}
	return action, true
}

func openData(moduleID string) string {
	return moduleData(actionOpen, moduleID)
}

// moduleData ties a phase action to the module whose screen shows it, so a
// button on an old message cannot act on a different open module.
func moduleData(action, moduleID string) string {
	return fmt.Sprintf("%s:%s", action, moduleID)
}

func answerData(questionID, value string) string {
	return fmt.Sprintf("%s:%s:%s", actionAnswer, questionID, value)
}

func toggleData(itemID string, checked bool) string {
	value := "0"
	if checked {
		value = "1"
	}
	return fmt.Sprintf("%s:%s:%s", actionToggle, itemID, value)
}
