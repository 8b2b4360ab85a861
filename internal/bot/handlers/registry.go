package handlers

import (
	"github.com/edgard/surveybot/internal/dispatch"
	"github.com/edgard/surveybot/internal/telegram"
)

// RegisterAll returns the dispatcher's handler set.
func RegisterAll(deps HandlerDeps) dispatch.Handlers {
	return dispatch.Handlers{
		Start:    startHandler{deps}.Handle,
		Upcoming: upcomingHandler{deps}.Handle,
		Press:    buttonHandler{deps}.Handle,
		Invalid:  buttonHandler{deps}.HandleInvalid,
		Text:     textHandler{deps}.Handle,
	}
}

// Commands lists the commands advertised in the platform's command menu.
func Commands(deps HandlerDeps) []telegram.Command {
	return []telegram.Command{
		{Name: "start", Description: deps.Renderer.T("command_start")},
		{Name: "upcoming", Description: deps.Renderer.T("command_upcoming")},
	}
}
